package notify

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tankwatch/tank-guard/internal/domain/door"
)

type telegramCall struct {
	method  string
	text    string
	caption string
	silent  string
	photo   []byte
}

type fakeTelegram struct {
	mu        sync.Mutex
	calls     []telegramCall
	failPhoto bool
	failText  bool
}

func (f *fakeTelegram) handler(t *testing.T) http.Handler {
	t.Helper()

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		call := telegramCall{method: r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]}

		fail := false

		switch call.method {
		case "sendPhoto":
			if err := r.ParseMultipartForm(1 << 20); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)

				return
			}

			call.caption = r.FormValue("caption")
			call.silent = r.FormValue("disable_notification")

			file, _, err := r.FormFile("photo")
			if err == nil {
				call.photo, _ = io.ReadAll(file)
				_ = file.Close()
			}

			fail = f.failPhoto
		case "sendMessage":
			if err := r.ParseForm(); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)

				return
			}

			call.text = r.FormValue("text")
			call.silent = r.FormValue("disable_notification")
			fail = f.failText
		}

		f.mu.Lock()
		f.calls = append(f.calls, call)
		f.mu.Unlock()

		if fail {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"ok":false,"description":"Bad Request"}`))

			return
		}

		_, _ = w.Write([]byte(`{"ok":true}`))
	})
}

func (f *fakeTelegram) snapshot() []telegramCall {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]telegramCall(nil), f.calls...)
}

type staticSnapshots struct {
	image  []byte
	err    error
	camera string
}

func (s *staticSnapshots) Snapshot(_ context.Context, camera string) ([]byte, error) {
	s.camera = camera

	return s.image, s.err
}

func newTestTelegram(t *testing.T, fake *fakeTelegram, snaps SnapshotSource) *Telegram {
	t.Helper()

	srv := httptest.NewServer(fake.handler(t))
	t.Cleanup(srv.Close)

	return NewTelegram(TelegramConfig{
		BaseURL: srv.URL,
		Token:   "secret-token",
		ChatID:  "42",
		Retries: 3,
		Cameras: map[door.ChannelID]string{0: "tapo", 1: "tapo", 2: "tapo2"},
	}, srv.Client(), snaps)
}

func TestTelegram_SendPhoto(t *testing.T) {
	t.Parallel()

	fake := new(fakeTelegram)
	snaps := &staticSnapshots{image: []byte("jpeg")}
	tg := newTestTelegram(t, fake, snaps)

	err := tg.Send(context.Background(), Message{Text: "ALARM", Channel: 2})
	require.NoError(t, err)
	require.Equal(t, "tapo2", snaps.camera)

	calls := fake.snapshot()
	require.Len(t, calls, 1)
	require.Equal(t, "sendPhoto", calls[0].method)
	require.Equal(t, "ALARM", calls[0].caption)
	require.Equal(t, []byte("jpeg"), calls[0].photo)
	require.Equal(t, "false", calls[0].silent)
}

func TestTelegram_PhotoFallsBackToText(t *testing.T) {
	t.Parallel()

	fake := &fakeTelegram{failPhoto: true}
	tg := newTestTelegram(t, fake, &staticSnapshots{image: []byte("jpeg")})

	require.NoError(t, tg.Send(context.Background(), Message{Text: "ALARM", Channel: 1}))

	calls := fake.snapshot()
	require.Len(t, calls, 2)
	require.Equal(t, "sendPhoto", calls[0].method)
	require.Equal(t, "sendMessage", calls[1].method)
	require.Equal(t, "ALARM", calls[1].text)
}

func TestTelegram_NoSnapshot(t *testing.T) {
	t.Parallel()

	fake := new(fakeTelegram)
	tg := newTestTelegram(t, fake, &staticSnapshots{err: errors.New("camera offline")})

	require.NoError(t, tg.Send(context.Background(), Message{Text: "ALARM"}))

	calls := fake.snapshot()
	require.Len(t, calls, 1)
	require.Equal(t, "sendMessage", calls[0].method)
	require.Equal(t, "ALARM"+imageUnavailableNote, calls[0].text)
}

func TestTelegram_Silent(t *testing.T) {
	t.Parallel()

	fake := new(fakeTelegram)
	snaps := &staticSnapshots{image: []byte("jpeg")}
	tg := newTestTelegram(t, fake, snaps)

	require.NoError(t, tg.Send(context.Background(), Message{Text: "door opened", Channel: 1, Silent: true}))
	require.Equal(t, "tapo", snaps.camera)

	calls := fake.snapshot()
	require.Len(t, calls, 1)
	require.Equal(t, "sendPhoto", calls[0].method)
	require.Equal(t, "true", calls[0].silent)
	require.Equal(t, "door opened", calls[0].caption)
	require.Equal(t, []byte("jpeg"), calls[0].photo)
}

func TestTelegram_SilentFallsBackOnce(t *testing.T) {
	t.Parallel()

	fake := &fakeTelegram{failPhoto: true}
	tg := newTestTelegram(t, fake, &staticSnapshots{image: []byte("jpeg")})

	require.NoError(t, tg.Send(context.Background(), Message{Text: "door closed", Channel: 2, Silent: true}))

	calls := fake.snapshot()
	require.Len(t, calls, 2)
	require.Equal(t, "sendPhoto", calls[0].method)
	require.Equal(t, "sendMessage", calls[1].method)
	require.Equal(t, "true", calls[1].silent)
	require.Equal(t, "door closed"+imageUnavailableNote, calls[1].text)

	fake = &fakeTelegram{failText: true}
	tg = newTestTelegram(t, fake, nil)

	require.ErrorIs(t, tg.Send(context.Background(), Message{Text: "door closed", Silent: true}), errTelegramRejected)
	require.Len(t, fake.snapshot(), 1)
}

func TestTelegram_RetriesExhausted(t *testing.T) {
	t.Parallel()

	fake := &fakeTelegram{failText: true}
	tg := newTestTelegram(t, fake, nil)

	err := tg.Send(context.Background(), Message{Text: "ALARM"})
	require.ErrorIs(t, err, errTelegramRejected)
	require.Len(t, fake.snapshot(), 3)
}

func TestTelegram_RedactsToken(t *testing.T) {
	t.Parallel()

	tg := NewTelegram(TelegramConfig{
		BaseURL: "http://127.0.0.1:1",
		Token:   "secret-token",
		ChatID:  "42",
	}, nil, nil)

	err := tg.Send(context.Background(), Message{Text: "hello", Silent: true})
	require.Error(t, err)
	require.NotContains(t, err.Error(), "secret-token")
}

func TestFrigate_Snapshot(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tapo/latest.jpg" || r.URL.Query().Get("h") != "480" {
			http.NotFound(w, r)

			return
		}

		_, _ = w.Write([]byte("frame"))
	}))
	t.Cleanup(srv.Close)

	frigate := NewFrigate(srv.URL+"/", 480, srv.Client())

	image, err := frigate.Snapshot(context.Background(), "tapo")
	require.NoError(t, err)
	require.Equal(t, []byte("frame"), image)

	_, err = frigate.Snapshot(context.Background(), "missing")
	require.ErrorIs(t, err, errSnapshotStatus)
}
