package secpipe

import (
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	outcomeDispatched   = "dispatched"
	outcomeUnauthorized = "unauthorized"
	outcomeForbidden    = "forbidden"
	outcomeAmbiguous    = "ambiguous"
	outcomeServerError  = "server_error"
)

var verdicts = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "security_pipeline_verdicts_total",
	Help: "Requests by security pipeline verdict.",
}, []string{"outcome"})

func outcomeFor(status int) string {
	switch status {
	case fiber.StatusUnauthorized:
		return outcomeUnauthorized
	case fiber.StatusConflict:
		return outcomeAmbiguous
	default:
		return outcomeForbidden
	}
}
