package config

// TelemetryConfig holds OTLP trace export configuration.
//
// Traces are shipped over OTLP/HTTP to a local collector agent; see
// internal/app for the exporter wiring.
type TelemetryConfig struct {
	// AgentHost is the OTLP/HTTP endpoint (default: localhost:4318)
	AgentHost string `mapstructure:"agent_host" json:"agent_host"`
	// Environment is the deployment environment tag (default: dev)
	Environment string `mapstructure:"environment" json:"environment"`
	// ServiceName is the service name attached to traces (default: stressease)
	ServiceName string `mapstructure:"service_name" json:"service_name"`
}
