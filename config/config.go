package config

import "time"

// Config collects every knob the server reads from the environment.
// Values are parsed with ardanlabs/conf under the SKILLHIVE prefix.
type Config struct {
	Web        Web
	DB         DB
	Email      Email
	Auth       Auth
	Cors       Cors
	Oauth      Oauth
	Razorpay   Razorpay
	Cloudinary Cloudinary
}

type Web struct {
	Address         string        `conf:"default:0.0.0.0:8000"`
	ReadTimeout     time.Duration `conf:"default:5s"`
	WriteTimeout    time.Duration `conf:"default:10s"`
	IdleTimeout     time.Duration `conf:"default:120s"`
	ShutdownTimeout time.Duration `conf:"default:20s"`
}

type DB struct {
	User         string        `conf:"default:postgres"`
	Password     string        `conf:"default:postgres,mask"`
	Host         string        `conf:"default:localhost"`
	Name         string        `conf:"default:skillhive"`
	DisableTLS   bool          `conf:"default:true"`
	ReadyTimeout time.Duration `conf:"default:30s"`
}

type Email struct {
	Host         string
	Port         int `conf:"default:587"`
	Address      string
	Password     string        `conf:"mask"`
	TokenTimeout time.Duration `conf:"default:10m"`
}

type Auth struct {
	ActivationRequired bool `conf:"default:true"`
}

type Cors struct {
	Origin string
}

type Oauth struct {
	DiscoveryTimeout time.Duration `conf:"default:30s"`
	LoginRedirectURL string        `conf:"default:http://localhost:5173/dashboard"`
	Google           Provider
}

type Provider struct {
	Client      string
	Secret      string `conf:"mask"`
	URL         string `conf:"default:https://accounts.google.com"`
	RedirectURL string `conf:"default:http://localhost:8000/auth/oauth-callback/google"`
}

// Razorpay carries the gateway key pair. The key id is safe to hand to the
// checkout widget; the secret never leaves the server.
type Razorpay struct {
	KeyID  string
	Secret string `conf:"mask"`
	URL    string
}

type Cloudinary struct {
	CloudName string
	Key       string
	Secret    string `conf:"mask"`
}
