package mailserver

import (
	"errors"
	"fmt"
	"net"
	"net/mail"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const defaultSMTPPort = 587

// Credentials holds SMTP account settings read from a dotenv file.
type Credentials struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// Addr returns host:port for net/smtp.
func (c Credentials) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// LoadCredentials reads SMTP_HOST, SMTP_PORT, SMTP_USERNAME, SMTP_PASSWORD and
// SMTP_FROM from a dotenv file. SMTP_FROM defaults to the username.
func LoadCredentials(path string) (Credentials, error) {
	values, err := godotenv.Read(path)
	if err != nil {
		return Credentials{}, fmt.Errorf("read credentials: %w", err)
	}
	return parseCredentials(values)
}

func parseCredentials(values map[string]string) (Credentials, error) {
	get := func(key string) string { return strings.TrimSpace(values[key]) }

	creds := Credentials{
		Host:     get("SMTP_HOST"),
		Port:     defaultSMTPPort,
		Username: get("SMTP_USERNAME"),
		Password: values["SMTP_PASSWORD"],
		From:     get("SMTP_FROM"),
	}
	if raw := get("SMTP_PORT"); raw != "" {
		port, err := strconv.Atoi(raw)
		if err != nil || port <= 0 || port > 65535 {
			return Credentials{}, fmt.Errorf("SMTP_PORT %q is not a valid port", raw)
		}
		creds.Port = port
	}
	if creds.From == "" {
		creds.From = creds.Username
	}

	var errs []error
	if creds.Host == "" {
		errs = append(errs, errors.New("SMTP_HOST is not set"))
	}
	if creds.From == "" {
		errs = append(errs, errors.New("SMTP_FROM or SMTP_USERNAME is not set"))
	} else if _, err := mail.ParseAddress(creds.From); err != nil {
		errs = append(errs, fmt.Errorf("SMTP_FROM %q: %w", creds.From, err))
	}
	if err := errors.Join(errs...); err != nil {
		return Credentials{}, err
	}
	return creds, nil
}
