package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode"

	fhttp "github.com/bogdanfinn/fhttp"
	"github.com/dop251/goja"
	log "github.com/sirupsen/logrus"
)

// Browser shims the dapib script probes before reporting back through
// window.parent.ae.dapibReceive.
const dapibPrelude = `
var process = {};
var objectToString = Object.prototype.toString;
Object.prototype.toString = function () {
	if (this === process) {
		return "[object process]";
	}
	return objectToString.call(this);
};

var window = {
	document: {
		hidden: true,
		visibilityState: "prerender",
		activeElement: null
	},
	parent: {},
	requestAnimationFrame: undefined,
	cancelAnimationFrame: undefined
};

var response = null;

window.parent.ae = {
	answer: eval(answersSource),
	dapibReceive: function (data) {
		response = JSON.stringify(data);
	}
};
`

func (s *Session) fetchDapib(ctx context.Context, dapibURL string) error {
	resp, err := s.send(ctx, fhttp.MethodGet, dapibURL, nil, s.headers.Clone())
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	code, err := io.ReadAll(resp.Body)
	if err != nil {
		return &TransportError{Endpoint: dapibURL, Err: fmt.Errorf("failed to read dapib response - %w", err)}
	}

	log.Debugf("dapib script: %d bytes", len(code))
	s.dapibCode = string(code)
	return nil
}

// RunTGuess runs the dapib script over the guesses and returns the
// transformed answer list as JSON, ready to be encrypted.
func RunTGuess(code, sessionToken string, guesses []string) (string, error) {
	sess, ion, ok := strings.Cut(sessionToken, ".")
	if !ok || strings.Contains(ion, ".") {
		return "", fmt.Errorf("invalid session token format for tguess")
	}

	var answers strings.Builder
	answers.WriteString("[")
	for i, guess := range guesses {
		if i > 0 {
			answers.WriteString(", ")
		}

		var guessData map[string]interface{}
		if err := json.Unmarshal([]byte(guess), &guessData); err != nil {
			return "", fmt.Errorf("failed to parse guess - %w", err)
		}
		index, exists := guessData["index"]
		if !exists {
			return "", fmt.Errorf("guess %s has no index", guess)
		}
		fmt.Fprintf(&answers, "{index: %v, '%s': '%s'}", index, sess, ion)
	}
	answers.WriteString("]")

	vm := goja.New()
	if err := vm.Set("answersSource", answers.String()); err != nil {
		return "", err
	}
	if _, err := vm.RunString(dapibPrelude); err != nil {
		return "", fmt.Errorf("failed to run dapib prelude - %w", err)
	}
	if _, err := vm.RunString(code); err != nil {
		return "", fmt.Errorf("failed to run dapib code - %w", err)
	}

	responseStr, ok := vm.Get("response").Export().(string)
	if !ok {
		return "", errors.New("dapib code did not report a response")
	}

	var result struct {
		TAnswer []map[string]interface{} `json:"tanswer"`
	}
	if err := json.Unmarshal([]byte(responseStr), &result); err != nil {
		return "", fmt.Errorf("failed to parse dapib response - %w", err)
	}

	tanswer := make([]map[string]string, 0, len(result.TAnswer))
	for _, item := range result.TAnswer {
		converted := make(map[string]string, len(item))
		for key, value := range item {
			if str, ok := value.(string); ok {
				converted[key] = str
			} else {
				converted[key] = fmt.Sprintf("%v", value)
			}
		}
		tanswer = append(tanswer, converted)
	}

	// flagged answers carry an extra uppercase character per value
	if isFlagged(tanswer) {
		for _, item := range tanswer {
			for key, value := range item {
				item[key] = value[:len(value)-1]
			}
		}
	}

	encoded, err := json.Marshal(tanswer)
	if err != nil {
		return "", fmt.Errorf("failed to serialize tanswer - %w", err)
	}
	return string(encoded), nil
}

func isFlagged(data []map[string]string) bool {
	seen := 0
	for _, item := range data {
		for _, value := range item {
			if len(value) == 0 || !unicode.IsUpper(rune(value[len(value)-1])) {
				return false
			}
			seen++
		}
	}
	return seen > 0
}
