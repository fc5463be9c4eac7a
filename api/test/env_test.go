package test

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/jmoiron/sqlx"
	"github.com/ory/dockertest/v3"
	"github.com/sirupsen/logrus"
	"github.com/skillhive/skillhive/api"
	"github.com/skillhive/skillhive/api/background"
	"github.com/skillhive/skillhive/config"
	"github.com/skillhive/skillhive/core/claims"
	"github.com/skillhive/skillhive/core/payment"
	"github.com/skillhive/skillhive/core/user"
	"github.com/skillhive/skillhive/database"
	"github.com/skillhive/skillhive/random"
	"golang.org/x/crypto/bcrypt"
)

const (
	GatewayKeyID  = "rzp_test_k3y"
	GatewaySecret = "s3cr3t"
)

var (
	pgHost  string
	adminDB *sqlx.DB
	client  *http.Client
)

func TestMain(m *testing.M) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		log.Fatalf("building cookie jar: %v", err)
	}
	client = &http.Client{Jar: jar}

	pool, err := dockertest.NewPool("")
	if err != nil {
		log.Fatalf("connecting to docker: %v", err)
	}

	res, err := pool.Run("postgres", "15-alpine", []string{
		"POSTGRES_USER=postgres",
		"POSTGRES_PASSWORD=postgres",
	})
	if err != nil {
		log.Fatalf("starting postgres container: %v", err)
	}
	res.Expire(600)

	pgHost = res.GetHostPort("5432/tcp")

	if err := pool.Retry(func() error {
		db, err := database.Open(config.DB{
			User:       "postgres",
			Password:   "postgres",
			Host:       pgHost,
			Name:       "postgres",
			DisableTLS: true,
		})
		if err != nil {
			return err
		}
		adminDB = db
		return db.Ping()
	}); err != nil {
		log.Fatalf("waiting for postgres: %v", err)
	}

	code := m.Run()

	adminDB.Close()
	if err := pool.Purge(res); err != nil {
		log.Printf("purging postgres container: %v", err)
	}
	os.Exit(code)
}

// TestEnv is one isolated database plus a running API server over it, with
// one seeded account per role and the gateway pointed at a local mock.
type TestEnv struct {
	DB       *sqlx.DB
	URL      string
	Server   *httptest.Server
	Razorpay *mockRazorpay
	Mailer   *recordMailer

	Admin      user.User
	Instructor user.User
	User       user.User

	AdminEmail      string
	AdminPass       string
	InstructorEmail string
	InstructorPass  string
	UserEmail       string
	UserPass        string
}

func NewTestEnv(t *testing.T, name string) (*TestEnv, error) {
	t.Helper()

	if _, err := adminDB.Exec("CREATE DATABASE " + name); err != nil {
		return nil, fmt.Errorf("creating database %s: %w", name, err)
	}

	db, err := database.Open(config.DB{
		User:       "postgres",
		Password:   "postgres",
		Host:       pgHost,
		Name:       name,
		DisableTLS: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening database %s: %w", name, err)
	}
	t.Cleanup(func() { db.Close() })

	readyCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := database.StatusCheck(readyCtx, db); err != nil {
		return nil, fmt.Errorf("checking database %s: %w", name, err)
	}

	if err := database.Migrate(db); err != nil {
		return nil, fmt.Errorf("migrating database %s: %w", name, err)
	}

	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	session := scs.New()
	session.Lifetime = 24 * time.Hour

	bg := newTestBackground(t, logger)

	gateway := &mockRazorpay{}
	gwSrv := httptest.NewServer(gateway.handle())
	t.Cleanup(gwSrv.Close)

	rzp := config.Razorpay{KeyID: GatewayKeyID, Secret: GatewaySecret, URL: gwSrv.URL}

	mailer := newRecordMailer()

	srv := httptest.NewServer(api.APIMux(api.APIConfig{
		Log:                logger,
		DB:                 db,
		Session:            session,
		Mailer:             mailer,
		TokenTimeout:       time.Minute,
		Background:         bg,
		Gateway:            payment.NewRazorpay(rzp),
		RazorpayCfg:        rzp,
		Uploader:           fakeUploader{},
		ActivationRequired: true,
	}))
	t.Cleanup(srv.Close)

	env := &TestEnv{
		DB:       db,
		URL:      srv.URL,
		Server:   srv,
		Razorpay: gateway,
		Mailer:   mailer,

		AdminEmail:      "admin@test.com",
		AdminPass:       "admin-pass-123",
		InstructorEmail: "instructor@test.com",
		InstructorPass:  "instructor-pass-123",
		UserEmail:       "user@test.com",
		UserPass:        "user-pass-123",
	}

	if env.Admin, err = env.seedUser(t, "Admin", env.AdminEmail, env.AdminPass, claims.RoleAdmin); err != nil {
		return nil, err
	}
	if env.Instructor, err = env.seedUser(t, "Instructor", env.InstructorEmail, env.InstructorPass, claims.RoleInstructor); err != nil {
		return nil, err
	}
	if env.User, err = env.seedUser(t, "User", env.UserEmail, env.UserPass, claims.RoleLearner); err != nil {
		return nil, err
	}

	return env, nil
}

func (te *TestEnv) Client() *http.Client {
	return client
}

func (te *TestEnv) seedUser(t *testing.T, name string, email string, pass string, role string) (user.User, error) {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(pass), bcrypt.MinCost)
	if err != nil {
		return user.User{}, fmt.Errorf("hashing password for %s: %w", email, err)
	}

	now := time.Now().UTC()
	usr := user.User{
		Name:         name,
		Email:        email,
		Role:         role,
		PasswordHash: string(hash),
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	return user.Create(context.Background(), te.DB, usr)
}

func Login(srv *httptest.Server, email string, password string) error {
	body := fmt.Sprintf(`{"email":%q,"password":%q}`, email, password)

	r, err := http.NewRequest(http.MethodPost, srv.URL+"/auth/login", strings.NewReader(body))
	if err != nil {
		return err
	}
	r.Header.Set("Content-Type", "application/json")

	w, err := client.Do(r)
	if err != nil {
		return err
	}
	defer w.Body.Close()

	if w.StatusCode != http.StatusOK {
		return fmt.Errorf("can't login as %s: status code %s", email, w.Status)
	}
	return nil
}

func Logout(srv *httptest.Server) error {
	r, err := http.NewRequest(http.MethodPost, srv.URL+"/auth/logout", nil)
	if err != nil {
		return err
	}

	w, err := client.Do(r)
	if err != nil {
		return err
	}
	defer w.Body.Close()

	if w.StatusCode != http.StatusOK && w.StatusCode != http.StatusNoContent {
		return fmt.Errorf("can't logout: status code %s", w.Status)
	}
	return nil
}

// newTestBackground drains scheduled tasks when the test ends so a slow
// mailer cannot outlive its database.
func newTestBackground(t *testing.T, log logrus.FieldLogger) *background.Background {
	t.Helper()

	bg := background.New(log)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := bg.Shutdown(ctx); err != nil {
			t.Logf("draining background tasks: %v", err)
		}
	})
	return bg
}

// fakeUploader stands in for the media store and hands back stable fake
// URLs without touching the network.
type fakeUploader struct{}

func (fakeUploader) UploadImage(ctx context.Context, r io.Reader, folder string) (string, error) {
	io.Copy(io.Discard, r)
	return "https://cdn.test/" + folder + "/" + random.String(8) + ".jpg", nil
}

func (fakeUploader) UploadVideo(ctx context.Context, r io.Reader, folder string) (string, error) {
	io.Copy(io.Discard, r)
	return "https://cdn.test/" + folder + "/" + random.String(8) + ".mp4", nil
}

// recordMailer captures one-time passwords instead of dialing SMTP.
type recordMailer struct {
	mu   sync.Mutex
	otps map[string]string
}

func newRecordMailer() *recordMailer {
	return &recordMailer{otps: make(map[string]string)}
}

func (m *recordMailer) SendOTP(to string, otp string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.otps[to] = otp
	return nil
}

// OTP polls for the password mailed to an address, since delivery happens
// on a background goroutine.
func (m *recordMailer) OTP(to string) string {
	for i := 0; i < 50; i++ {
		m.mu.Lock()
		otp := m.otps[to]
		m.mu.Unlock()
		if otp != "" {
			return otp
		}
		time.Sleep(20 * time.Millisecond)
	}
	return ""
}
