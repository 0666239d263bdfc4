package core

import (
	"fmt"
	"regexp"

	utils "funcaptchaclient/utils"
)

const (
	GameTypeImage   = "image"
	GameTypeAudio   = "audio"
	GameTypeUnknown = "unknown"
)

var tagPattern = regexp.MustCompile(`<[^>]*>`)

// ConciseChallenge is the part of a challenge a guesser needs.
type ConciseChallenge struct {
	GameType     string   `json:"game_type"`
	URLs         []string `json:"urls"`
	Instructions string   `json:"instructions"`
}

// FunCaptcha is the presentable first image of a challenge.
type FunCaptcha struct {
	Image        string `json:"image"`
	Instructions string `json:"instructions"`
}

func StripTags(input string) string {
	return tagPattern.ReplaceAllString(input, "")
}

func BuildConciseChallenge(challenge *utils.Challenge) ConciseChallenge {
	gameData := challenge.GameData

	var concise ConciseChallenge
	var key string
	switch gameData.GameType {
	case 4:
		concise.GameType = GameTypeImage
		concise.URLs = gameData.CustomGUI.ChallengeImgs
		key = fmt.Sprintf("4.instructions-%s", gameData.InstructionString)
	case 101:
		concise.GameType = GameTypeAudio
		concise.URLs = challenge.AudioChallengeURLs
		key = fmt.Sprintf("audio_game.instructions-%s", gameData.GameVariant)
	default:
		return ConciseChallenge{GameType: GameTypeUnknown, URLs: []string{}}
	}

	if concise.URLs == nil {
		concise.URLs = []string{}
	}
	// a missing string table entry leaves the instructions empty
	concise.Instructions = StripTags(challenge.StringTable[key])

	return concise
}
