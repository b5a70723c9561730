// Пакет notify — доставка уведомлений об истечении полисов во внешние системы.
// WebhookNotifier отправляет POST с JSON-событием, поддерживает TLS с кастомным CA
// и Bearer token от ClientCredentials.
package notify

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/bigkaa/carinsurance/internal/domain/model"
)

// EventPolicyExpired — тип события в теле webhook.
const EventPolicyExpired = "policy.expired"

// maxErrorBody — сколько байт тела ошибки попадает в сообщение.
const maxErrorBody = 1024

// TokenProvider — функция, возвращающая токен для заголовка Authorization.
type TokenProvider func(ctx context.Context) (string, error)

// expiredEvent — тело webhook.
type expiredEvent struct {
	Event      string     `json:"event"`
	ScanID     string     `json:"scan_id"`
	PolicyID   int64      `json:"policy_id"`
	VehicleID  int64      `json:"vehicle_id"`
	EndDate    model.Date `json:"end_date"`
	DetectedAt time.Time  `json:"detected_at"`
}

// WebhookNotifier — уведомления через HTTP webhook.
type WebhookNotifier struct {
	url           string
	httpClient    *http.Client
	tokenProvider TokenProvider
	logger        *slog.Logger
}

// NewHTTPClient создаёт HTTP-клиент с таймаутом и, если задан caCertPath,
// с дополнительным CA-сертификатом в пуле доверия.
func NewHTTPClient(caCertPath string, timeout time.Duration) (*http.Client, error) {
	httpClient := &http.Client{Timeout: timeout}
	if caCertPath == "" {
		return httpClient, nil
	}

	tlsConfig, err := buildTLSConfig(caCertPath)
	if err != nil {
		return nil, fmt.Errorf("загрузка CA-сертификата: %w", err)
	}
	httpClient.Transport = &http.Transport{
		TLSClientConfig: tlsConfig,
	}
	return httpClient, nil
}

// NewWebhookNotifier создаёт notifier.
// httpClient может быть nil — используется клиент с таймаутом 10s.
// tokenProvider может быть nil — запросы без авторизации.
func NewWebhookNotifier(
	webhookURL string,
	httpClient *http.Client,
	tokenProvider TokenProvider,
	logger *slog.Logger,
) *WebhookNotifier {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &WebhookNotifier{
		url:           webhookURL,
		httpClient:    httpClient,
		tokenProvider: tokenProvider,
		logger:        logger.With(slog.String("component", "webhook_notifier")),
	}
}

// NotifyExpired отправляет событие policy.expired.
// Idempotency-Key одинаков для повторных отправок одного полиса:
// получатель может отбросить дубликаты при повторе после сбоя записи.
func (n *WebhookNotifier) NotifyExpired(ctx context.Context, notice model.ExpirationNotice) error {
	body, err := json.Marshal(expiredEvent{
		Event:      EventPolicyExpired,
		ScanID:     notice.ScanID,
		PolicyID:   notice.PolicyID,
		VehicleID:  notice.VehicleID,
		EndDate:    notice.EndDate,
		DetectedAt: notice.DetectedAt.UTC(),
	})
	if err != nil {
		return fmt.Errorf("сериализация события: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("создание запроса webhook: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", idempotencyKey(notice.PolicyID))

	if n.tokenProvider != nil {
		token, err := n.tokenProvider(ctx)
		if err != nil {
			return fmt.Errorf("получение токена для webhook: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("запрос webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("webhook вернул статус %d: %s", resp.StatusCode, string(respBody))
	}
	_, _ = io.Copy(io.Discard, resp.Body)

	n.logger.InfoContext(ctx, "Уведомление об истечении доставлено",
		slog.String("scan_id", notice.ScanID),
		slog.Int64("policy_id", notice.PolicyID),
		slog.Int("status", resp.StatusCode),
	)
	return nil
}

func idempotencyKey(policyID int64) string {
	return EventPolicyExpired + ":" + strconv.FormatInt(policyID, 10)
}

// buildTLSConfig создаёт TLS-конфигурацию с кастомным CA.
func buildTLSConfig(caCertPath string) (*tls.Config, error) {
	caCert, err := os.ReadFile(caCertPath)
	if err != nil {
		return nil, fmt.Errorf("чтение CA-сертификата: %w", err)
	}

	caCertPool, err := x509.SystemCertPool()
	if err != nil {
		caCertPool = x509.NewCertPool()
	}
	if !caCertPool.AppendCertsFromPEM(caCert) {
		return nil, fmt.Errorf("в файле %s нет PEM-сертификатов", caCertPath)
	}

	return &tls.Config{
		RootCAs:    caCertPool,
		MinVersion: tls.VersionTLS12,
	}, nil
}
