package config

const (
	// EnvPrefix is intentionally empty: every field names its full
	// POSLANE_* variable in its envconfig tag.
	EnvPrefix = ""

	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)
