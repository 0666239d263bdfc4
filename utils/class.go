package utils

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
)

// Wire constants
const (
	AnalyticsTier     = 40
	RenderType        = "canvas"
	Lang              = "en-US"
	APIBreakerVersion = "green"
)

// Telemetry (/fc/a/)
type ChallengeLogger struct {
	Sid           string
	SessionToken  string
	AnalyticsTier int
	RenderType    string

	// nil means the field is left out of the form
	GameToken *string
	GameType  *string
	Category  *string
	Action    *string
}

func NewChallengeLogger(sid, sessionToken string) ChallengeLogger {
	return ChallengeLogger{
		Sid:           sid,
		SessionToken:  sessionToken,
		AnalyticsTier: AnalyticsTier,
		RenderType:    RenderType,
	}
}

func (c ChallengeLogger) Form() url.Values {
	data := url.Values{
		"sid":            {c.Sid},
		"session_token":  {c.SessionToken},
		"analytics_tier": {strconv.Itoa(c.AnalyticsTier)},
		"render_type":    {c.RenderType},
	}

	optional := map[string]*string{
		"game_token": c.GameToken,
		"game_type":  c.GameType,
		"category":   c.Category,
		"action":     c.Action,
	}
	for key, value := range optional {
		if value != nil {
			data.Set(key, *value)
		}
	}

	return data
}

// Challenge request (/fc/gfct/)
type RequestChallenge struct {
	Sid               string
	Token             string
	AnalyticsTier     int
	RenderType        string
	Lang              string
	IsAudioGame       bool
	APIBreakerVersion string
}

func (r RequestChallenge) Form() url.Values {
	return url.Values{
		"sid":               {r.Sid},
		"token":             {r.Token},
		"analytics_tier":    {strconv.Itoa(r.AnalyticsTier)},
		"render_type":       {r.RenderType},
		"lang":              {r.Lang},
		"isAudioGame":       {strconv.FormatBool(r.IsAudioGame)},
		"apiBreakerVersion": {r.APIBreakerVersion},
	}
}

// Challenge response
type Challenge struct {
	SessionToken         string            `json:"session_token"`
	ChallengeID          string            `json:"challengeID"`
	ChallengeURL         string            `json:"challengeURL"`
	AudioChallengeURLs   []string          `json:"audio_challenge_urls"`
	AudioGameRateLimited json.RawMessage   `json:"audio_game_rate_limited"`
	Sec                  json.RawMessage   `json:"sec"`
	EndURL               json.RawMessage   `json:"end_url"`
	GameData             GameData          `json:"game_data"`
	GameSID              string            `json:"game_sid"`
	SID                  string            `json:"sid"`
	Lang                 string            `json:"lang"`
	StringTablePrefixes  []json.RawMessage `json:"string_table_prefixes"`
	StringTable          map[string]string `json:"string_table"`
	EarlyVictoryMessage  json.RawMessage   `json:"earlyVictoryMessage"`
	FontSizeAdjustments  json.RawMessage   `json:"font_size_adjustments"`
	StyleTheme           string            `json:"style_theme"`
	DapibURL             string            `json:"dapib_url"`
}

type GameData struct {
	GameType          int       `json:"gameType"`
	GameVariant       string    `json:"game_variant"`
	InstructionString string    `json:"instruction_string"`
	CustomGUI         CustomGUI `json:"customGUI"`
}

type CustomGUI struct {
	ChallengeImgs []string `json:"_challenge_imgs"`
}

// Answer submission (/fc/ca/)
type SubmitChallenge struct {
	SessionToken  string
	Sid           string
	GameToken     string
	Guess         string
	RenderType    string
	AnalyticsTier int
	Bio           string
	TGuess        string
}

func NewSubmitChallenge(sessionToken, sid, gameToken, guess string) SubmitChallenge {
	return SubmitChallenge{
		SessionToken:  sessionToken,
		Sid:           sid,
		GameToken:     gameToken,
		Guess:         guess,
		RenderType:    RenderType,
		AnalyticsTier: AnalyticsTier,
		Bio:           Bio,
	}
}

func (s SubmitChallenge) Form() url.Values {
	data := url.Values{
		"session_token":  {s.SessionToken},
		"sid":            {s.Sid},
		"game_token":     {s.GameToken},
		"guess":          {s.Guess},
		"render_type":    {s.RenderType},
		"analytics_tier": {strconv.Itoa(s.AnalyticsTier)},
		"bio":            {s.Bio},
	}
	if s.TGuess != "" {
		data.Set("tguess", s.TGuess)
	}
	return data
}

// Submit Result
type SubmitResult struct {
	Response       json.RawMessage `json:"response"`
	Solved         bool            `json:"solved"`
	IncorrectGuess interface{}     `json:"incorrect_guess"`
	Score          json.RawMessage `json:"score"`
	Error          string          `json:"error"`
}

// Hint returns incorrect_guess as text, whatever JSON type the vendor used.
func (r SubmitResult) Hint() string {
	switch v := r.IncorrectGuess.(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprintf("%v", v)
	}
}
