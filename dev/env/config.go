package devenv

// PortalTestConfig is read from <dev_state>/portal/config.json5 by the
// tests that log into the real portal.
type PortalTestConfig struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
	// a term the account has courses in, like "202409"
	Term string `json:"term" validate:"required,len=6"`
}

const PortalTestConfigPath = "portal/config.json5"
