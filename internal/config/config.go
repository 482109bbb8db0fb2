package config

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/deepnsharma/crm-chat-connector/internal/logx"
)

// Config carries every setting the connector needs, populated from the
// environment (optionally preloaded from a .env file).
type Config struct {
	Port        string `split_words:"true" default:"8080"`
	Environment string `split_words:"true" default:"production"`

	Log      logx.Config `split_words:"true"`
	WhatsApp WhatsApp    `envconfig:"WHATSAPP"`
	Dynamics Dynamics    `envconfig:"DYNAMICS"`
	N8n      N8n         `envconfig:"N8N"`
	Database Database    `envconfig:"DB"`

	// UseMemoryStore switches session persistence to the in-memory store,
	// for local runs and tests without PostgreSQL
	UseMemoryStore bool `split_words:"true" default:"false"`
}

// WhatsApp configures the Meta Cloud API client and webhook verification.
type WhatsApp struct {
	BaseURL       string `split_words:"true" default:"https://graph.facebook.com/v19.0"`
	PhoneNumberID string `split_words:"true"`
	AccessToken   string `split_words:"true"`
	VerifyToken   string `split_words:"true"`
}

// MessagesURL is the Cloud API endpoint for outbound sends.
func (w WhatsApp) MessagesURL() string {
	return w.BaseURL + "/" + w.PhoneNumberID + "/messages"
}

// Dynamics configures the Dataverse Web API and the Azure AD app used to
// authenticate against it.
type Dynamics struct {
	BaseURL    string `split_words:"true"`
	APIVersion string `split_words:"true" default:"v9.2"`

	TenantID     string `split_words:"true"`
	ClientID     string `split_words:"true"`
	ClientSecret string `split_words:"true"`
	Scope        string `split_words:"true"`
}

// APIURL is the Dataverse Web API root.
func (d Dynamics) APIURL() string {
	return d.BaseURL + "/api/data/" + d.APIVersion
}

// TokenURL is the Azure AD v2 token endpoint for the configured tenant.
func (d Dynamics) TokenURL() string {
	return fmt.Sprintf("https://login.microsoftonline.com/%s/oauth2/v2.0/token", d.TenantID)
}

// N8n configures the workflow-automation webhook endpoints, one path per
// business event.
type N8n struct {
	BaseURL string `split_words:"true"`

	WebhookIncomingMessage     string `split_words:"true" default:"/webhook/incoming-message"`
	WebhookLeadCreated         string `split_words:"true" default:"/webhook/lead-created"`
	WebhookComplaintRegistered string `split_words:"true" default:"/webhook/complaint-registered"`
	WebhookDoRequest           string `split_words:"true" default:"/webhook/do-request"`
	WebhookQuotationResponse   string `split_words:"true" default:"/webhook/quotation-response"`
}

// WebhookURL joins a webhook path onto the n8n base URL.
func (n N8n) WebhookURL(path string) string {
	return n.BaseURL + path
}

// Database holds the PostgreSQL connection settings.
type Database struct {
	Host     string `split_words:"true" default:"localhost"`
	Port     string `split_words:"true" default:"5432"`
	User     string `split_words:"true" default:"postgres"`
	Password string `split_words:"true"`
	Name     string `split_words:"true" default:"crm_chat"`
	SSLMode  string `split_words:"true" default:"disable"`
}

// DSN builds the GORM postgres connection string.
func (d Database) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		d.Host, d.User, d.Password, d.Name, d.Port, d.SSLMode)
}

// Load reads a .env file when present and then processes the environment.
func Load() (*Config, error) {
	// Missing .env is fine; deployed environments inject real env vars
	_ = godotenv.Load(".env")

	var conf Config
	if err := envconfig.Process("", &conf); err != nil {
		return nil, fmt.Errorf("failed to process environment: %w", err)
	}
	return &conf, nil
}
