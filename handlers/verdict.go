package handlers

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/judgenot0/watchdog/structs"
)

type EngineData struct {
	JobID     int64  `json:"job_id"`
	Result    string `json:"result"`
	ExitCode  int    `json:"exit_code"`
	TimeMS    int64  `json:"timeMS"`
	MemoryKB  int64  `json:"memoryKB"`
	TLE       bool   `json:"TLE"`
	MLE       bool   `json:"MLE"`
	Stdout    string `json:"stdout"`
	Stderr    string `json:"stderr"`
	Timestamp int64  `json:"timestamp"`
}

type EnginePayload struct {
	Data        *EngineData `json:"payload"`
	AccessToken string      `json:"access_token"`
}

var httpClient = &http.Client{
	Timeout: 30 * time.Second,
}

// GenerateToken signs the verdict data with the shared engine key so the
// control server can authenticate the callback.
func GenerateToken(data *EngineData, secret string) (*EnginePayload, error) {
	message, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(message)
	expectedMAC := mac.Sum(nil)
	accessToken := hex.EncodeToString(expectedMAC)

	return &EnginePayload{
		Data:        data,
		AccessToken: accessToken,
	}, nil
}

// ProduceVerdict posts one job's verdict to the control server. Failures
// are logged, not retried: the server reconciles missing verdicts by
// requeueing the job.
func (h *Handler) ProduceVerdict(jobID int64, verdict *structs.Verdict) error {
	data := &EngineData{
		JobID:     jobID,
		Result:    Classify(verdict),
		ExitCode:  verdict.ExitCode,
		TimeMS:    verdict.TimeMS,
		MemoryKB:  verdict.MemoryKB,
		TLE:       verdict.TLE,
		MLE:       verdict.MLE,
		Stdout:    verdict.Stdout,
		Stderr:    verdict.Stderr,
		Timestamp: time.Now().Unix(),
	}

	payload, err := GenerateToken(data, h.Config.EngineKey)
	if err != nil {
		return err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	url := strings.TrimSuffix(h.Config.ServerEndpoint, "/") + "/verdict"
	resp, err := httpClient.Post(url, "application/json", bytes.NewBuffer(body))
	if err != nil {
		log.Printf("Failed to deliver verdict for job %d: %v", jobID, err)
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		log.Printf("Verdict for job %d rejected: %s %s", jobID, resp.Status, string(snippet))
		return fmt.Errorf("verdict rejected: %s", resp.Status)
	}
	return nil
}
