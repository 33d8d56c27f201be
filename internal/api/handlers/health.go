// health.go — пробы Kubernetes и экспорт метрик.
// /health/live отвечает, пока жив процесс. /health/ready опрашивает
// PostgreSQL, Keycloak и (если подключён) планировщик sweep.
package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bigkaa/onboarding-portal/internal/config"
)

const serviceName = "onboarding-portal"

// Статусы проб по возрастанию тяжести.
const (
	statusOK       = "ok"
	statusDegraded = "degraded"
	statusFail     = "fail"
)

var statusRank = map[string]int{statusOK: 0, statusDegraded: 1, statusFail: 2}

// ReadinessChecker — зависимость, умеющая сообщить о своей готовности.
type ReadinessChecker interface {
	// CheckReady возвращает "ok", "degraded" или "fail" и пояснение.
	CheckReady() (status string, message string)
}

// HealthHandler обслуживает /health/* и /metrics.
type HealthHandler struct {
	pgChecker    ReadinessChecker
	kcChecker    ReadinessChecker
	sweepChecker ReadinessChecker
	promHandler  http.Handler
}

// NewHealthHandler принимает проверки PostgreSQL и Keycloak.
// nil-проверка считается проваленной.
func NewHealthHandler(pgChecker, kcChecker ReadinessChecker) *HealthHandler {
	return &HealthHandler{
		pgChecker:   pgChecker,
		kcChecker:   kcChecker,
		promHandler: promhttp.Handler(),
	}
}

// WithSweepChecker добавляет проверку свежести sweep. Она не может
// опустить итог ниже degraded: без sweep портал продолжает обслуживать запросы.
func (h *HealthHandler) WithSweepChecker(c ReadinessChecker) *HealthHandler {
	h.sweepChecker = c
	return h
}

type healthCheckResult struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// probeHeader — общие поля обеих проб.
type probeHeader struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
	Service   string `json:"service"`
}

type readyChecks struct {
	PostgreSQL healthCheckResult  `json:"postgresql"`
	Keycloak   healthCheckResult  `json:"keycloak"`
	Sweep      *healthCheckResult `json:"sweep,omitempty"`
}

type healthReadyResponse struct {
	probeHeader
	Checks readyChecks `json:"checks"`
}

func newProbeHeader(status string) probeHeader {
	return probeHeader{
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   config.Version,
		Service:   serviceName,
	}
}

// HealthLive — liveness: всегда 200.
func (h *HealthHandler) HealthLive(w http.ResponseWriter, _ *http.Request) {
	writeProbe(w, http.StatusOK, newProbeHeader(statusOK))
}

// HealthReady — readiness: 503 при fail, иначе 200 со статусом ok или degraded.
func (h *HealthHandler) HealthReady(w http.ResponseWriter, _ *http.Request) {
	checks := readyChecks{
		PostgreSQL: probe(h.pgChecker),
		Keycloak:   probe(h.kcChecker),
	}
	status := worst(checks.PostgreSQL.Status, checks.Keycloak.Status)

	if h.sweepChecker != nil {
		sw := probe(h.sweepChecker)
		checks.Sweep = &sw
		if sw.Status != statusOK {
			status = worst(status, statusDegraded)
		}
	}

	code := http.StatusOK
	if status == statusFail {
		code = http.StatusServiceUnavailable
	}
	writeProbe(w, code, healthReadyResponse{probeHeader: newProbeHeader(status), Checks: checks})
}

// GetMetrics отдаёт реестр Prometheus по умолчанию.
func (h *HealthHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	h.promHandler.ServeHTTP(w, r)
}

func probe(c ReadinessChecker) healthCheckResult {
	if c == nil {
		return healthCheckResult{Status: statusFail, Message: "не инициализирован"}
	}
	st, msg := c.CheckReady()
	return healthCheckResult{Status: st, Message: msg}
}

// worst возвращает самый тяжёлый статус. Неизвестный статус считается fail.
func worst(statuses ...string) string {
	res := statusOK
	for _, s := range statuses {
		rank, known := statusRank[s]
		if !known {
			return statusFail
		}
		if rank > statusRank[res] {
			res = s
		}
	}
	return res
}

func writeProbe(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}
