package config // package config loads application configuration from environment variables

import (
	"log"  // log is used to report configuration errors and halt execution
	"os"   // os provides access to environment variables
	"time" // time is used for durations such as the session TTL
)

// Config holds all runtime configuration values. Each field corresponds
// to an environment variable. Channel credentials are optional so the
// service can run with only one of the two bots enabled; the payment
// gateway settings are always required.
type Config struct {
	Env  string // application environment (e.g. "dev", "prod")
	Port string // HTTP port to listen on

	DBUser string // database username
	DBPass string // database password (optional)
	DBHost string // database host address
	DBPort string // database port number
	DBName string // database name

	PaycardCommerceCode string // merchant code sent with every payment link
	PaycardCreateURL    string // gateway endpoint that creates hosted payment pages
	PaycardStatusBase   string // gateway base URL for status lookups
	PaycardCallbackURL  string // optional redirect after payment completes

	TelegramToken    string // Telegram bot token; empty disables the Telegram bot
	TwilioAccountSID string // Twilio account SID; empty disables WhatsApp
	TwilioAuthToken  string // Twilio auth token
	TwilioFrom       string // WhatsApp sender, e.g. "whatsapp:+14155238886"

	PublicBaseURL string // externally reachable base URL for voucher media
	MediaDir      string // directory where voucher files are written

	PaymentPollInterval    time.Duration // delay between background status checks
	PaymentPollMaxAttempts int           // polling budget per payment
	SessionTTL             time.Duration // idle session expiry; 0 keeps sessions forever
}

// Load reads configuration values from environment variables and returns
// a Config. Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message.
func Load() Config {
	return Config{
		Env:  must("APP_ENV"),  // environment (dev/test/prod)
		Port: must("APP_PORT"), // port to bind the HTTP server

		DBUser: must("DB_USER"),      // database user
		DBPass: os.Getenv("DB_PASS"), // database password (empty allowed)
		DBHost: must("DB_HOST"),      // database host
		DBPort: must("DB_PORT"),      // database port
		DBName: must("DB_NAME"),      // database name

		PaycardCommerceCode: must("PAYCARD_COMMERCE_CODE"),
		PaycardCreateURL:    must("PAYCARD_CREATE_URL"),
		PaycardStatusBase:   must("PAYCARD_STATUS_BASE"),
		PaycardCallbackURL:  os.Getenv("PAYCARD_CALLBACK_URL"),

		TelegramToken:    os.Getenv("TELEGRAM_BOT_TOKEN"),
		TwilioAccountSID: os.Getenv("TWILIO_ACCOUNT_SID"),
		TwilioAuthToken:  os.Getenv("TWILIO_AUTH_TOKEN"),
		TwilioFrom:       os.Getenv("TWILIO_WHATSAPP_FROM"),

		PublicBaseURL: envStr("PUBLIC_BASE_URL", "http://localhost:8080"),
		MediaDir:      envStr("MEDIA_DIR", "media/tickets"),

		PaymentPollInterval:    envDur("PAYMENT_POLL_INTERVAL", 10*time.Second),
		PaymentPollMaxAttempts: envInt("PAYMENT_POLL_MAX_ATTEMPTS", 30),
		SessionTTL:             envDur("SESSION_TTL", 0),
	}
}

// must retrieves the value of a required environment variable. If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}
