package transport

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantumvote/palmscan"
	"github.com/quantumvote/palmscan/config"
	"github.com/quantumvote/palmscan/keyexchange"
	"github.com/quantumvote/palmscan/payload"
)

type staticKeys struct {
	key   []byte
	err   error
	calls int
}

func (s *staticKeys) FetchKey() (*keyexchange.SessionKey, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &keyexchange.SessionKey{Encoded: base64.StdEncoding.EncodeToString(s.key), Bytes: s.key}, nil
}

type recorded struct {
	path  string
	query string
	body  map[string]interface{}
}

func backend(t *testing.T, status int, reply string, got *recorded) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		got.path = r.URL.EscapedPath()
		got.query = r.URL.RawQuery
		assert.NoError(t, json.Unmarshal(data, &got.body))
		assert.Contains(t, r.Header.Get("Content-Type"), "application/json")
		w.WriteHeader(status)
		w.Write([]byte(reply))
	}))
}

func senderFor(srv *httptest.Server, keys keyexchange.Source) *Sender {
	b := config.New().Backend
	b.BaseURL = srv.URL
	return NewSender(keys, b)
}

func TestEnvelopeShapes(t *testing.T) {
	enroll, err := json.Marshal(NewEnvelope(ModeEnroll, "V123", "ct", "k"))
	require.NoError(t, err)
	verify, err := json.Marshal(NewEnvelope(ModeVerify, "V123", "ct", "k"))
	require.NoError(t, err)

	var e, v map[string]interface{}
	require.NoError(t, json.Unmarshal(enroll, &e))
	require.NoError(t, json.Unmarshal(verify, &v))

	assert.Equal(t, map[string]interface{}{"voterCode": "V123", "encryptedTemplate": "ct", "sessionKey": "k"}, e)
	assert.Equal(t, map[string]interface{}{"voterCode": "V123", "encryptedTemplate": "ct"}, v)
}

func TestEnrollPostsKeyAndDecryptableTemplate(t *testing.T) {
	keys := &staticKeys{key: bytes.Repeat([]byte{4}, payload.KeySize)}
	var got recorded
	srv := backend(t, http.StatusOK, `{"voterCode":"V123"}`, &got)
	defer srv.Close()

	tpl := palmscan.NewTemplate(bytes.Repeat([]byte{255}, palmscan.TemplateLength))
	receipt, err := senderFor(srv, keys).Enroll("V123", tpl)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, receipt.Status)
	assert.Equal(t, "/api/admin/voters/V123/register-template", got.path)
	assert.Equal(t, "V123", got.body["voterCode"])
	assert.Equal(t, base64.StdEncoding.EncodeToString(keys.key), got.body["sessionKey"])

	plain, err := payload.Decrypt(got.body["encryptedTemplate"].(string), keys.key)
	require.NoError(t, err)
	assert.Equal(t, tpl.Bytes(), plain)
}

func TestEnrollEscapesVoterCode(t *testing.T) {
	keys := &staticKeys{key: bytes.Repeat([]byte{4}, payload.KeySize)}
	tpl := palmscan.NewTemplate([]byte{7, 8, 9})

	for code, path := range map[string]string{
		"V?x=1": "/api/admin/voters/V%3Fx=1/register-template",
		"A/B":   "/api/admin/voters/A%2FB/register-template",
		"V#1":   "/api/admin/voters/V%231/register-template",
	} {
		var got recorded
		srv := backend(t, http.StatusOK, `{}`, &got)
		_, err := senderFor(srv, keys).Enroll(code, tpl)
		srv.Close()

		require.NoError(t, err, code)
		assert.Equal(t, path, got.path, code)
		assert.Empty(t, got.query, code)
		assert.Equal(t, code, got.body["voterCode"], code)
	}
}

func TestVerifyOmitsKeyAndParsesScore(t *testing.T) {
	keys := &staticKeys{key: bytes.Repeat([]byte{8}, payload.KeySize)}
	var got recorded
	srv := backend(t, http.StatusOK, `{"verified":true,"score":0.93}`, &got)
	defer srv.Close()

	receipt, err := senderFor(srv, keys).Verify("V123", palmscan.NewTemplate([]byte{1, 2, 3}))
	require.NoError(t, err)

	assert.Equal(t, "/api/voter/scan", got.path)
	assert.NotContains(t, got.body, "sessionKey")
	require.NotNil(t, receipt.Verified)
	assert.True(t, *receipt.Verified)
	assert.InDelta(t, 0.93, *receipt.Score, 1e-9)
}

func TestRejectedVerificationIsTransportError(t *testing.T) {
	keys := &staticKeys{key: bytes.Repeat([]byte{8}, payload.KeySize)}
	var got recorded
	srv := backend(t, http.StatusUnauthorized, `{"verified":false,"score":0.2}`, &got)
	defer srv.Close()

	receipt, err := senderFor(srv, keys).Verify("V1", palmscan.NewTemplate([]byte{1}))
	assert.Nil(t, receipt)
	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, http.StatusUnauthorized, te.Status)
	assert.Contains(t, te.Body, "verified")
}

func TestKeyFailureSendsNothing(t *testing.T) {
	keys := &staticKeys{err: &keyexchange.KeyExchangeError{URL: "x", Status: 500}}
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { hits++ }))
	defer srv.Close()

	_, err := senderFor(srv, keys).Enroll("V1", palmscan.NewTemplate([]byte{1}))
	var ke *keyexchange.KeyExchangeError
	assert.ErrorAs(t, err, &ke)
	assert.Zero(t, hits)
}

func TestEncryptFailureSendsNothing(t *testing.T) {
	keys := &staticKeys{key: []byte("bad")}
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { hits++ }))
	defer srv.Close()

	_, err := senderFor(srv, keys).Verify("V1", palmscan.NewTemplate([]byte{1}))
	assert.True(t, errors.Is(err, payload.ErrInvalidKey))
	assert.Zero(t, hits)
}

func TestUnreachableBackend(t *testing.T) {
	keys := &staticKeys{key: bytes.Repeat([]byte{1}, payload.KeySize)}
	srv := httptest.NewServer(http.NotFoundHandler())
	s := senderFor(srv, keys)
	srv.Close()

	_, err := s.Verify("V1", palmscan.NewTemplate([]byte{1}))
	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.NotNil(t, te.Err)
}

func TestSendValidatesInput(t *testing.T) {
	keys := &staticKeys{key: bytes.Repeat([]byte{1}, payload.KeySize)}
	s := NewSender(keys, config.New().Backend)

	_, err := s.Verify("", palmscan.NewTemplate([]byte{1}))
	assert.Error(t, err)
	_, err = s.Verify("V1", nil)
	assert.Error(t, err)
	assert.Zero(t, keys.calls)
}
