package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"funcaptchaclient/config"
	"funcaptchaclient/core"
	"funcaptchaclient/routes"
	utils "funcaptchaclient/utils"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	log "github.com/sirupsen/logrus"
)

const CheckPeriod = 1 * time.Minute

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Config failed to load: %v", err)
	}

	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Invalid log level %q: %v", cfg.LogLevel, err)
	}
	log.SetLevel(level)
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	utils.ConfigureClient(utils.ClientConfig{
		Proxy:          cfg.Proxy,
		TimeoutSeconds: cfg.TimeoutSeconds,
		Profile:        cfg.TLSProfile,
	})
	if _, err := utils.SharedClient(); err != nil {
		log.Fatalf("HTTP client failed to build: %v", err)
	}

	events, err := utils.ParseBio(utils.Bio)
	if err != nil {
		log.Fatalf("Bio blob is corrupt: %v", err)
	}
	log.Debugf("bio replays %d mouse events", len(events))

	e := echo.New()

	// Debug Setting
	e.Logger.SetOutput(io.Discard)
	e.Debug = false

	// Middleware
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"*"},
		AllowHeaders:     []string{"*"},
		AllowCredentials: true,
	}))

	// Sessions
	handler := routes.NewHandler(startSession, cfg.TaskTimeout, cfg.TaskTTL)
	handler.Register(e)
	handler.StartSweeper(context.Background(), CheckPeriod)

	// Decrypt Endpoints
	e.POST("/decryptGuess", decryptGuessRoute)

	log.Infof("Server is running on PORT: %d", cfg.Port)
	if err := e.Start(fmt.Sprintf(":%d", cfg.Port)); err != nil {
		log.Fatalf("Server failed to start: %v", err)
	}
}

func startSession(ctx context.Context, token string) (*core.Session, error) {
	return core.StartChallenge(ctx, token)
}

// Utility Routes
func decryptGuessRoute(c echo.Context) error {
	type GuessRequest struct {
		Guess        string `json:"guess"`
		SessionToken string `json:"session_token"`
	}

	var req GuessRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{"success": false, "error": "invalid request"})
	}

	decrypted, err := utils.Cipher{}.Decrypt(req.Guess, req.SessionToken)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{"success": false, "error": "error decrypting - " + err.Error()})
	}

	var result interface{}
	if err := json.Unmarshal([]byte(decrypted), &result); err != nil {
		return c.JSON(http.StatusOK, map[string]interface{}{"success": true, "raw": decrypted})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{"success": true, "data": result})
}
