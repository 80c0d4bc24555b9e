package storage

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"classportal/internal/apperr"
	"classportal/internal/logger"
	"classportal/internal/store"
)

// ObjectsPath is the route upload URLs point at; the token follows it.
const ObjectsPath = "/v1/storage/objects/"

const uploadAudience = "upload"

// UnresolvedMessage is reported when a storage reference has no durable URL.
const UnresolvedMessage = "Failed to generate file URL"

var (
	errInvalidUploadURL = apperr.New(http.StatusUnauthorized, "upload url expired or invalid")
	errUploadURLUsed    = apperr.Conflict("upload url already used")
	errEmptyUpload      = apperr.BadRequest("empty upload")
	errForeignFile      = apperr.Forbidden("file was uploaded by another user")
	errFileAttached     = apperr.Conflict("file is already attached")
)

// Options configures a Service.
type Options struct {
	SigningKey    string
	Issuer        string
	PublicBaseURL string
	URLTTL        time.Duration
	MaxBytes      int64
}

// UploadTarget is a short-lived write target for one file.
type UploadTarget struct {
	UploadURL string    `json:"uploadUrl"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Service implements the upload handshake: generate a signed target, accept
// the bytes once, then resolve and claim the resulting reference.
type Service struct {
	repo *Repository
	blob Blob
	opts Options
	now  func() time.Time
}

// NewService creates a handshake service writing to blob.
func NewService(repo *Repository, blob Blob, opts Options) *Service {
	if opts.URLTTL <= 0 {
		opts.URLTTL = time.Hour
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = 20 << 20
	}
	opts.PublicBaseURL = strings.TrimRight(opts.PublicBaseURL, "/")
	return &Service{repo: repo, blob: blob, opts: opts, now: time.Now}
}

// Backend returns the blob backend in use.
func (s *Service) Backend() Blob { return s.blob }

// GenerateUploadURL returns a single-use target for ownerID. The token id is the
// storage reference the upload will be known by.
func (s *Service) GenerateUploadURL(_ context.Context, ownerID string) (UploadTarget, error) {
	now := s.now()
	exp := now.Add(s.opts.URLTTL)
	claims := jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Subject:   ownerID,
		Issuer:    s.opts.Issuer,
		Audience:  jwt.ClaimStrings{uploadAudience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.opts.SigningKey))
	if err != nil {
		return UploadTarget{}, errors.Wrap(err, "sign upload token")
	}
	return UploadTarget{UploadURL: s.opts.PublicBaseURL + ObjectsPath + token, ExpiresAt: exp}, nil
}

// Accept stores the bytes sent to an upload URL and returns the storage reference.
func (s *Service) Accept(ctx context.Context, token string, body io.Reader, contentType string) (string, error) {
	claims, err := s.parseToken(token)
	if err != nil {
		return "", errInvalidUploadURL
	}

	data, err := io.ReadAll(io.LimitReader(body, s.opts.MaxBytes+1))
	if err != nil {
		return "", errors.Wrap(err, "read upload body")
	}
	if int64(len(data)) > s.opts.MaxBytes {
		return "", apperr.ErrTooLarge
	}
	if len(data) == 0 {
		return "", errEmptyUpload
	}
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}

	ref := claims.ID
	rec := StoredObject{
		Ref:         ref,
		Key:         "uploads/" + ref,
		ContentType: contentType,
		Size:        int64(len(data)),
		OwnerID:     claims.Subject,
		CreatedAt:   s.now().UTC(),
	}
	if err := s.repo.Reserve(ctx, rec); err != nil {
		if store.IsUniqueViolation(err) {
			return "", errUploadURLUsed
		}
		return "", errors.Wrap(err, "reserve upload")
	}

	obj, err := s.blob.Put(ctx, rec.Key, data, contentType)
	if err != nil {
		uploadsTotal.WithLabelValues(s.blob.Name(), "error").Inc()
		logger.Error().Err(err).Str("ref", ref).Str("backend", s.blob.Name()).Msg("blob put failed")
		if derr := s.repo.Delete(ctx, ref); derr != nil {
			logger.Warn().Err(derr).Str("ref", ref).Msg("drop failed reservation")
		}
		return "", apperr.Wrap(err, http.StatusBadGateway, apperr.ErrUploadFailed.Message)
	}
	if err := s.repo.Complete(ctx, ref, obj, rec.Size); err != nil {
		return "", err
	}
	uploadsTotal.WithLabelValues(s.blob.Name(), "ok").Inc()
	uploadBytes.WithLabelValues(s.blob.Name()).Add(float64(rec.Size))
	return ref, nil
}

func (s *Service) parseToken(token string) (*jwt.RegisteredClaims, error) {
	parsed, err := jwt.ParseWithClaims(token, &jwt.RegisteredClaims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(s.opts.SigningKey), nil
	},
		jwt.WithAudience(uploadAudience),
		jwt.WithIssuer(s.opts.Issuer),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, err
	}
	claims, ok := parsed.Claims.(*jwt.RegisteredClaims)
	if !ok || !parsed.Valid || claims.ID == "" {
		return nil, errors.New("invalid upload token")
	}
	return claims, nil
}

// Resolve returns the durable URL for ref.
func (s *Service) Resolve(ctx context.Context, ref string) (string, error) {
	rec, err := s.repo.Get(ctx, ref)
	if err != nil {
		return "", err
	}
	if rec == nil || rec.URL == "" {
		return "", apperr.Invalid(UnresolvedMessage)
	}
	return rec.URL, nil
}

// Attach resolves refs uploaded by ownerID and claims them so the sweeper keeps
// them. A ref can be claimed once; nothing is claimed when any ref fails.
func (s *Service) Attach(ctx context.Context, ownerID string, refs ...string) ([]string, error) {
	urls := make([]string, 0, len(refs))
	unique := make([]string, 0, len(refs))
	seen := make(map[string]bool, len(refs))
	for _, ref := range refs {
		rec, err := s.repo.Get(ctx, ref)
		if err != nil {
			return nil, err
		}
		switch {
		case rec == nil || rec.URL == "":
			return nil, apperr.Invalid(UnresolvedMessage)
		case rec.OwnerID != ownerID:
			return nil, errForeignFile
		case rec.Claimed:
			return nil, errFileAttached
		}
		urls = append(urls, rec.URL)
		if !seen[ref] {
			seen[ref] = true
			unique = append(unique, ref)
		}
	}
	ok, err := s.repo.Claim(ctx, ownerID, unique...)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errFileAttached
	}
	return urls, nil
}

// Detach undoes Attach for a record that was never stored.
func (s *Service) Detach(ctx context.Context, ownerID string, refs ...string) error {
	return s.repo.Unclaim(ctx, ownerID, refs...)
}

// Release deletes the blob served at url. URLs this service never issued are ignored.
func (s *Service) Release(ctx context.Context, url string) error {
	rec, err := s.repo.GetByURL(ctx, url)
	if err != nil {
		return err
	}
	if rec == nil {
		logger.Debug().Str("url", url).Msg("release: unknown url")
		return nil
	}
	return s.drop(ctx, *rec, "released")
}

// SweepOrphans deletes uploads never attached to a record within olderThan.
func (s *Service) SweepOrphans(ctx context.Context, olderThan time.Duration) (int, error) {
	orphans, err := s.repo.Unclaimed(ctx, s.now().UTC().Add(-olderThan))
	if err != nil {
		return 0, err
	}
	n := 0
	for _, rec := range orphans {
		if err := s.drop(ctx, rec, "orphan"); err != nil {
			logger.Warn().Err(err).Str("ref", rec.Ref).Msg("sweep: drop failed")
			continue
		}
		n++
	}
	return n, nil
}

func (s *Service) drop(ctx context.Context, rec StoredObject, reason string) error {
	if rec.URL != "" {
		if err := s.blob.Delete(ctx, rec.object()); err != nil {
			return err
		}
	}
	if err := s.repo.Delete(ctx, rec.Ref); err != nil {
		return err
	}
	releasedTotal.WithLabelValues(s.blob.Name(), reason).Inc()
	return nil
}
