package booking

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/securecookie"

	"github.com/example/workshop-booking/internal/logger"
)

// StorageKey is the single well-known key the draft is persisted under.
const StorageKey = "booking_form_data"

// Store persists the one live draft. A failed read is an empty draft. A
// failed write is logged and returned so callers can stay where they are.
type Store interface {
	Load() Draft
	Persist(d Draft) error
	Clear()
}

func normalize(d Draft) Draft {
	if d.JobTypeNames == nil {
		d.JobTypeNames = []string{}
	}
	return d
}

// MemoryStore keeps the serialized draft in memory. It goes through the same
// JSON encoding as the cookie store.
type MemoryStore struct {
	blob []byte
}

func (m *MemoryStore) Load() Draft {
	if len(m.blob) == 0 {
		return Empty()
	}
	var d Draft
	if err := json.Unmarshal(m.blob, &d); err != nil {
		logger.Warn("booking draft unreadable, starting fresh", "key", StorageKey, "error", err)
		return Empty()
	}
	return normalize(d)
}

func (m *MemoryStore) Persist(d Draft) error {
	b, err := json.Marshal(d)
	if err != nil {
		logger.Error("booking draft not persisted", "key", StorageKey, "error", err)
		return err
	}
	m.blob = b
	return nil
}

func (m *MemoryStore) Clear() { m.blob = nil }

// Raw exposes the stored blob, mainly for tests that corrupt it.
func (m *MemoryStore) Raw() []byte { return m.blob }

func (m *MemoryStore) SetRaw(b []byte) { m.blob = b }

// CookieCodec signs and encrypts drafts into the booking_form_data cookie.
type CookieCodec struct {
	sc     *securecookie.SecureCookie
	maxAge time.Duration
}

func NewCookieCodec(hashKey, blockKey []byte, maxAge time.Duration) *CookieCodec {
	sc := securecookie.New(hashKey, blockKey)
	sc.SetSerializer(securecookie.JSONEncoder{})
	sc.MaxAge(int(maxAge.Seconds()))
	return &CookieCodec{sc: sc, maxAge: maxAge}
}

// Store binds the codec to one request/response pair.
func (c *CookieCodec) Store(w http.ResponseWriter, r *http.Request) Store {
	return &cookieStore{codec: c, w: w, r: r}
}

type cookieStore struct {
	codec *CookieCodec
	w     http.ResponseWriter
	r     *http.Request

	// written holds what this request already persisted, so a Load after a
	// Persist sees the new draft rather than the incoming cookie.
	written *Draft
}

func (s *cookieStore) Load() Draft {
	if s.written != nil {
		return s.written.clone()
	}
	c, err := s.r.Cookie(StorageKey)
	if err != nil {
		return Empty()
	}
	var d Draft
	if err := s.codec.sc.Decode(StorageKey, c.Value, &d); err != nil {
		logger.Warn("booking draft cookie rejected, starting fresh", "error", err)
		return Empty()
	}
	return normalize(d)
}

func (s *cookieStore) Persist(d Draft) error {
	encoded, err := s.codec.sc.Encode(StorageKey, d)
	if err != nil {
		logger.Error("booking draft not persisted", "key", StorageKey, "error", err)
		return err
	}
	s.setCookie(&http.Cookie{
		Name:     StorageKey,
		Value:    encoded,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   s.r.TLS != nil,
		MaxAge:   int(s.codec.maxAge.Seconds()),
	})
	saved := normalize(d.clone())
	s.written = &saved
	return nil
}

func (s *cookieStore) Clear() {
	s.setCookie(&http.Cookie{
		Name:     StorageKey,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
	empty := Empty()
	s.written = &empty
}

// setCookie replaces any booking cookie already queued on this response.
func (s *cookieStore) setCookie(c *http.Cookie) {
	h := s.w.Header()
	var kept []string
	for _, v := range h.Values("Set-Cookie") {
		if !strings.HasPrefix(v, StorageKey+"=") {
			kept = append(kept, v)
		}
	}
	h.Del("Set-Cookie")
	for _, v := range kept {
		h.Add("Set-Cookie", v)
	}
	http.SetCookie(s.w, c)
}
