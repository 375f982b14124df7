// Package identity verifies Firebase ID tokens and turns them into a
// per-request model.Identity.
package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	firebase "firebase.google.com/go/v4"
	fbauth "firebase.google.com/go/v4/auth"
	"github.com/jmehdipour/titletester/internal/config"
	"github.com/jmehdipour/titletester/internal/metrics"
	"github.com/jmehdipour/titletester/internal/model"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

// TokenVerifier is the provider call Verify relies on. *fbauth.Client satisfies it.
type TokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*fbauth.Token, error)
}

// Connector opens a TokenVerifier from client options.
type Connector func(ctx context.Context, projectID string, opts ...option.ClientOption) (TokenVerifier, error)

// Classifier maps a provider error to an ErrorKind.
type Classifier func(err error) ErrorKind

// FirebaseConnector builds a Firebase app and returns its auth client.
func FirebaseConnector(ctx context.Context, projectID string, opts ...option.ClientOption) (TokenVerifier, error) {
	var conf *firebase.Config
	if projectID != "" {
		conf = &firebase.Config{ProjectID: projectID}
	}
	app, err := firebase.NewApp(ctx, conf, opts...)
	if err != nil {
		return nil, fmt.Errorf("new firebase app: %w", err)
	}
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("firebase auth client: %w", err)
	}
	return client, nil
}

// ClassifyFirebaseError maps SDK verification errors to kinds. Expiry is
// tested first so the specific kind wins.
func ClassifyFirebaseError(err error) ErrorKind {
	switch {
	case fbauth.IsIDTokenExpired(err):
		return KindExpiredToken
	case fbauth.IsIDTokenInvalid(err):
		return KindInvalidToken
	default:
		return KindAuthFailed
	}
}

type Option func(*Verifier)

func WithConnector(c Connector) Option {
	return func(v *Verifier) { v.connect = c }
}

func WithClassifier(c Classifier) Option {
	return func(v *Verifier) { v.classify = c }
}

// Status describes the outcome of Init.
type Status struct {
	Initialized bool   // a provider client is available
	Disabled    bool   // init failed and the verifier rejects every call
	Strategy    string // credential source that succeeded
	Err         error
}

// Verifier validates ID tokens against Firebase Auth. It is initialized at
// most once; the client is read-only afterwards and shared by all requests.
type Verifier struct {
	cfg        config.FirebaseConfig
	production bool
	log        *zap.Logger
	connect    Connector
	classify   Classifier

	once     sync.Once
	done     atomic.Bool
	client   TokenVerifier
	strategy string
	initErr  error
}

// New returns an uninitialized verifier. In production mode a failed Init
// disables the verifier instead of returning an error.
func New(cfg config.FirebaseConfig, production bool, log *zap.Logger, opts ...Option) *Verifier {
	if log == nil {
		log = zap.NewNop()
	}
	v := &Verifier{
		cfg:        cfg,
		production: production,
		log:        log.With(zap.String("component", "identity")),
		connect:    FirebaseConnector,
		classify:   ClassifyFirebaseError,
	}
	for _, o := range opts {
		o(v)
	}
	return v
}

// Init obtains provider credentials. Concurrent and repeated calls share the
// first call's outcome.
func (v *Verifier) Init(ctx context.Context) error {
	v.once.Do(func() {
		v.initialize(ctx)
		v.done.Store(true)
	})
	if v.initErr != nil && !v.production {
		return v.initErr
	}
	return nil
}

func (v *Verifier) initialize(ctx context.Context) {
	list, errs := strategies(v.cfg)
	for _, e := range errs {
		v.log.Warn("skipping firebase credential source", zap.Error(e))
	}

	for _, s := range list {
		if s.name == StrategyDefault {
			v.log.Warn("no explicit firebase credentials found, trying application default credentials")
		}
		client, err := v.connect(ctx, v.cfg.ProjectID, s.opts...)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.name, err))
			continue
		}
		v.client = client
		v.strategy = s.name
		v.log.Info("firebase initialized", zap.String("strategy", s.name))
		return
	}

	v.initErr = fmt.Errorf("initialize firebase: %w", errors.Join(errs...))
	v.log.Error("failed to initialize firebase", zap.Error(v.initErr))
	if v.production {
		v.log.Warn("authentication disabled: every verification will fail")
	}
}

// Status reports the Init outcome; zero value before Init has finished.
func (v *Verifier) Status() Status {
	if !v.done.Load() {
		return Status{}
	}
	return Status{
		Initialized: v.client != nil,
		Disabled:    v.client == nil,
		Strategy:    v.strategy,
		Err:         v.initErr,
	}
}

// Verify checks token with the provider and builds the caller's identity.
// Failures are *Error values tagged with a kind.
func (v *Verifier) Verify(ctx context.Context, token string) (model.Identity, error) {
	id, err := v.verify(ctx, token)
	outcome := "ok"
	if err != nil {
		outcome = KindOf(err).String()
	}
	metrics.AuthVerificationsTotal.WithLabelValues(outcome).Inc()
	return id, err
}

func (v *Verifier) verify(ctx context.Context, token string) (model.Identity, error) {
	if err := v.Init(ctx); err != nil {
		return model.Identity{}, fail(KindUnavailable, err)
	}
	if v.client == nil {
		return model.Identity{}, fail(KindUnavailable, v.initErr)
	}

	token = strings.TrimSpace(token)
	if token == "" {
		return model.Identity{}, fail(KindInvalidToken, errors.New("empty token"))
	}

	if v.cfg.VerifyTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, v.cfg.VerifyTimeout)
		defer cancel()
	}

	tok, err := v.client.VerifyIDToken(ctx, token)
	if err != nil {
		kind := v.classify(err)
		if kind == KindAuthFailed {
			v.log.Error("error verifying firebase id token", zap.Error(err))
		} else {
			v.log.Debug("rejected firebase id token", zap.String("kind", kind.String()), zap.Error(err))
		}
		return model.Identity{}, fail(kind, err)
	}

	id, err := identityFromToken(tok)
	if err != nil {
		v.log.Error("firebase token without subject", zap.Error(err))
		return model.Identity{}, fail(KindAuthFailed, err)
	}
	return id, nil
}

// reservedClaims are registered JWT and Firebase claims; everything else is custom.
var reservedClaims = map[string]struct{}{
	"iss": {}, "aud": {}, "sub": {}, "iat": {}, "exp": {}, "nbf": {},
	"auth_time": {}, "user_id": {}, "uid": {}, "firebase": {},
	"email": {}, "email_verified": {}, "name": {}, "picture": {}, "phone_number": {},
	"custom_claims": {},
}

func identityFromToken(tok *fbauth.Token) (model.Identity, error) {
	if tok == nil {
		return model.Identity{}, errors.New("nil token")
	}
	uid := tok.UID
	if uid == "" {
		uid = tok.Subject
	}
	if uid == "" {
		return model.Identity{}, errors.New("token has no uid")
	}

	claims := tok.Claims
	id := model.Identity{
		UID:           uid,
		Email:         stringClaim(claims, "email"),
		EmailVerified: boolClaim(claims, "email_verified"),
		DisplayName:   stringClaim(claims, "name"),
		PhotoURL:      stringClaim(claims, "picture"),
		CustomClaims:  map[string]any{},
	}

	if nested, ok := claims["custom_claims"].(map[string]any); ok {
		for k, val := range nested {
			id.CustomClaims[k] = val
		}
	}
	for k, val := range claims {
		if _, reserved := reservedClaims[k]; reserved {
			continue
		}
		id.CustomClaims[k] = val
	}
	return id, nil
}

func stringClaim(claims map[string]any, key string) string {
	s, _ := claims[key].(string)
	return s
}

func boolClaim(claims map[string]any, key string) bool {
	b, _ := claims[key].(bool)
	return b
}
