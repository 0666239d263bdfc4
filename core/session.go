package core

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"

	utils "funcaptchaclient/utils"

	fhttp "github.com/bogdanfinn/fhttp"
	log "github.com/sirupsen/logrus"
)

const (
	GameCoreVersion = "1.13.0"
	CapiVersion     = "1.5.2"
	InitHex         = "cd12da708fe6cbe6e068918c38de2ad9"

	formContentType = "application/x-www-form-urlencoded; charset=UTF-8"
)

// Vendor host, overridable for tests and regional deployments
var APIURL = "https://client-api.arkoselabs.com"

func loggerURL() string    { return APIURL + "/fc/a/" }
func challengeURL() string { return APIURL + "/fc/gfct/" }
func answerURL() string    { return APIURL + "/fc/ca/" }

func enforcementURL() string {
	return fmt.Sprintf("%s/v2/%s/enforcement.%s.html", APIURL, CapiVersion, InitHex)
}

// Doer is satisfied by tls_client.HttpClient.
type Doer interface {
	Do(req *fhttp.Request) (*fhttp.Response, error)
}

type State int

const (
	StateInit State = iota
	StatePrepared
	StateChallenged
	StatePresented
	StateSolved
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StatePrepared:
		return "prepared"
	case StateChallenged:
		return "challenged"
	case StatePresented:
		return "presented"
	case StateSolved:
		return "solved"
	case StateFailed:
		return "failed"
	}
	return "state(" + strconv.Itoa(int(s)) + ")"
}

// Session is one challenge attempt. It is driven by a single goroutine and
// can submit exactly one answer.
type Session struct {
	client    Doer
	encrypter utils.Encrypter

	sid          string
	sessionToken string
	headers      fhttp.Header
	logger       utils.ChallengeLogger

	challenge  *utils.Challenge
	concise    *ConciseChallenge
	funcaptcha *FunCaptcha
	dapibCode  string

	state    State
	consumed bool
}

type Option func(*Session)

func WithClient(client Doer) Option {
	return func(s *Session) { s.client = client }
}

func WithEncrypter(encrypter utils.Encrypter) Option {
	return func(s *Session) { s.encrypter = encrypter }
}

func newSession(token CompositeToken, opts ...Option) (*Session, error) {
	session := &Session{
		sid:          token.Sid,
		sessionToken: token.SessionToken,
		headers:      fhttp.Header{},
		logger:       utils.NewChallengeLogger(token.Sid, token.SessionToken),
		encrypter:    utils.Cipher{},
	}
	for _, opt := range opts {
		opt(session)
	}

	if session.client == nil {
		client, err := utils.SharedClient()
		if err != nil {
			return nil, err
		}
		session.client = client
	}

	session.headers.Set("Referer", token.Referer())
	session.headers.Set("DNT", "1")

	return session, nil
}

// StartChallenge runs the session up to a presentable image. Every step is
// fatal; nothing is retried.
func StartChallenge(ctx context.Context, rawToken string, opts ...Option) (*Session, error) {
	token, err := ParseToken(rawToken)
	if err != nil {
		return nil, err
	}

	session, err := newSession(token, opts...)
	if err != nil {
		return nil, err
	}

	if err := session.log(ctx, "", 0, "Site URL", enforcementURL()); err != nil {
		return nil, session.fail(err)
	}
	session.state = StatePrepared

	if err := session.requestChallenge(ctx); err != nil {
		return nil, session.fail(err)
	}

	if session.concise != nil {
		images, err := session.downloadImagesToBase64(ctx, session.concise.URLs)
		if err != nil {
			return nil, session.fail(err)
		}
		if len(images) == 0 {
			return nil, session.fail(ErrNoImage)
		}

		log.Debugf("images: %v", session.concise.URLs)
		session.funcaptcha = &FunCaptcha{
			Image:        images[0],
			Instructions: session.concise.Instructions,
		}
		session.state = StatePresented

		// tguess is optional; answers go out without it when the script is unavailable
		if session.challenge.DapibURL != "" {
			if err := session.fetchDapib(ctx, session.challenge.DapibURL); err != nil {
				log.WithError(err).Warn("dapib script unavailable")
			}
		}
	}

	return session, nil
}

func (s *Session) Funcaptcha() *FunCaptcha {
	return s.funcaptcha
}

func (s *Session) ConciseChallenge() *ConciseChallenge {
	return s.concise
}

func (s *Session) State() State {
	return s.state
}

func (s *Session) fail(err error) error {
	s.state = StateFailed
	return err
}

func (s *Session) send(ctx context.Context, method, endpoint string, body io.Reader, headers fhttp.Header) (*fhttp.Response, error) {
	req, err := fhttp.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, &TransportError{Endpoint: endpoint, Err: err}
	}
	req.Header = headers
	if body != nil {
		req.Header.Set("Content-Type", formContentType)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, &TransportError{Endpoint: endpoint, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, &RemoteStatusError{Endpoint: endpoint, Status: resp.StatusCode}
	}

	return resp, nil
}

func (s *Session) postForm(ctx context.Context, endpoint string, form url.Values, headers fhttp.Header) (*fhttp.Response, error) {
	return s.send(ctx, fhttp.MethodPost, endpoint, strings.NewReader(form.Encode()), headers)
}

func (s *Session) log(ctx context.Context, gameToken string, gameType int, category, action string) error {
	event := s.logger
	event.GameToken = &gameToken
	if gameType != 0 {
		encoded := strconv.Itoa(gameType)
		event.GameType = &encoded
	}
	event.Category = &category
	event.Action = &action

	resp, err := s.postForm(ctx, loggerURL(), event.Form(), s.headers.Clone())
	if err != nil {
		return err
	}
	resp.Body.Close()

	return nil
}

func (s *Session) requestChallenge(ctx context.Context) error {
	request := utils.RequestChallenge{
		Sid:               s.sid,
		Token:             s.sessionToken,
		AnalyticsTier:     utils.AnalyticsTier,
		RenderType:        utils.RenderType,
		Lang:              utils.Lang,
		IsAudioGame:       false,
		APIBreakerVersion: utils.APIBreakerVersion,
	}

	// timestamp only goes on this request
	headers := s.headers.Clone()
	headers.Set("X-NewRelic-Timestamp", utils.NewRelicTime())

	resp, err := s.postForm(ctx, challengeURL(), request.Form(), headers)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var challenge utils.Challenge
	if err := json.NewDecoder(resp.Body).Decode(&challenge); err != nil {
		return &TransportError{Endpoint: challengeURL(), Err: fmt.Errorf("failed to parse challenge - %w", err)}
	}

	if err := s.log(ctx, challenge.ChallengeID, challenge.GameData.GameType, "loaded", "game loaded"); err != nil {
		return err
	}

	concise := BuildConciseChallenge(&challenge)
	log.WithFields(log.Fields{
		"game_type":    concise.GameType,
		"urls":         len(concise.URLs),
		"instructions": concise.Instructions,
	}).Debug("concise challenge")

	s.challenge = &challenge
	s.concise = &concise
	s.state = StateChallenged

	return nil
}

func (s *Session) downloadImagesToBase64(ctx context.Context, urls []string) ([]string, error) {
	images := make([]string, 0, len(urls))
	for _, imgURL := range urls {
		resp, err := s.send(ctx, fhttp.MethodGet, imgURL, nil, s.headers.Clone())
		if err != nil {
			return nil, err
		}

		imgContent, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, &TransportError{Endpoint: imgURL, Err: fmt.Errorf("failed to read image content - %w", err)}
		}

		images = append(images, "data:image/png;base64,"+base64.StdEncoding.EncodeToString(imgContent))
	}

	return images, nil
}

// SubmitAnswer sends the guess for the presented image. The session is
// spent afterwards, whatever the outcome.
func (s *Session) SubmitAnswer(ctx context.Context, index int) error {
	if s.consumed {
		return ErrSessionConsumed
	}
	if s.challenge == nil || s.state != StatePresented {
		return ErrNoChallenge
	}
	s.consumed = true

	log.Debugf("answer index:%d", index)

	answer := fmt.Sprintf(`{"index":%d}`, index)
	guess, err := s.encrypter.Encrypt("["+answer+"]", s.sessionToken)
	if err != nil {
		return s.fail(fmt.Errorf("error encrypting answer - %w", err))
	}

	submit := utils.NewSubmitChallenge(s.sessionToken, s.sid, s.challenge.ChallengeID, guess)

	if s.dapibCode != "" {
		tguess, err := s.tguess(answer)
		if err != nil {
			log.WithError(err).Warn("submitting without tguess")
		} else {
			submit.TGuess = tguess
		}
	}

	requestID, err := utils.RequestID(s.encrypter, s.sessionToken)
	if err != nil {
		return s.fail(err)
	}
	s.headers.Set("X-Requested-ID", requestID)
	s.headers.Set("X-NewRelic-Timestamp", utils.NewRelicTime())

	resp, err := s.postForm(ctx, answerURL(), submit.Form(), s.headers.Clone())
	if err != nil {
		return s.fail(err)
	}
	defer resp.Body.Close()

	var result utils.SubmitResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return s.fail(&TransportError{Endpoint: answerURL(), Err: fmt.Errorf("failed to parse answer response - %w", err)})
	}

	if result.Error != "" {
		return s.fail(&SubmitError{Message: result.Error})
	}
	if !result.Solved {
		return s.fail(&IncorrectGuessError{Hint: result.Hint()})
	}

	s.state = StateSolved
	return nil
}

func (s *Session) tguess(answer string) (string, error) {
	tanswer, err := RunTGuess(s.dapibCode, s.sessionToken, []string{answer})
	if err != nil {
		return "", err
	}
	tguess, err := s.encrypter.Encrypt(tanswer, s.sessionToken)
	if err != nil {
		return "", fmt.Errorf("error encrypting tguess - %w", err)
	}
	return tguess, nil
}
