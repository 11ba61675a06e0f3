package config

import (
	"github.com/kelseyhightower/envconfig"
)

// App holds all environment-driven settings. Load it after godotenv so a
// local .env file can supply the values.
type App struct {
	// Calendar
	CalendarID            string `envconfig:"GOOGLE_CALENDAR_ID" default:"primary"`
	BackendURL            string `envconfig:"BACKEND_URL" default:"http://localhost:8000"`
	UserEmail             string `envconfig:"USER_EMAIL"`
	PrimaryTimezone       string `envconfig:"PRIMARY_TIMEZONE" default:"UTC"`
	CredentialFile        string `envconfig:"CREDENTIAL_FILE" default:"credential-store.json"`
	CredentialPollSeconds int    `envconfig:"CREDENTIAL_POLL_SECONDS" default:"5"`
	// Bookings
	BookingsFile string `envconfig:"BOOKINGS_FILE" default:"bookings.json"`
	// Checkout
	CheckoutPublicKey string `envconfig:"CHECKOUT_PUBLIC_KEY"`
	CheckoutScriptURL string `envconfig:"CHECKOUT_SCRIPT_URL" default:"https://cdn.lawpay.com/checkout/v2/checkout.js"`
	HostedPageURL     string `envconfig:"HOSTED_PAGE_URL"`
	// Logging
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
}

func Load() (App, error) {
	var c App
	err := envconfig.Process("", &c)
	return c, err
}
