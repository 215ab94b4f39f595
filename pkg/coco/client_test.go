package coco

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whr-oam/coco-cli/internal/resilience"
)

var fixedNow = time.UnixMilli(1700000000123)

func fastRetry() resilience.RetryConfig {
	return resilience.RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		Backoff:        resilience.Linear,
	}
}

func newTestClient(srv *httptest.Server, opts ...Option) Client {
	base := []Option{
		WithFormURL(srv.URL + "/form"),
		WithEngineURL(srv.URL + "/engine3"),
		WithRetry(fastRetry()),
		WithTimeout(2 * time.Second),
		WithClock(func() time.Time { return fixedNow }),
	}
	return NewClient(append(base, opts...)...)
}

const formPage = `<html><body>
<form method="post" action="submit.php">
  <input type="hidden" name="sid" value="abc123">
  <input type="HIDDEN" name="lang" value="hu">
  <input type="text" name="matrix">
</form>
<form action="/other"><input type="hidden" name="ignored" value="1"></form>
</body></html>`

func resultTable(rows map[string]string) string {
	var b strings.Builder
	b.WriteString("<table><tr><td>Object</td><td>Becslés</td></tr>")
	for name, v := range rows {
		fmt.Fprintf(&b, "<tr><td> %s </td><td>x</td><td>%s</td></tr>", name, v)
	}
	b.WriteString("</table>")
	return b.String()
}

func names(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("Country %d", i)
	}
	return out
}

func TestRun_Success(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/form", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, DefaultUserAgent, r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte(formPage))
	})
	mux.HandleFunc("/submit.php", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))
		assert.True(t, strings.HasSuffix(r.Header.Get("Referer"), "/form"))
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "abc123", r.PostForm.Get("sid"))
		assert.Equal(t, "hu", r.PostForm.Get("lang"))
		assert.Empty(t, r.PostForm.Get("ignored"))
		assert.Equal(t, "whr_1700000000123", r.PostForm.Get("job"))
		assert.Equal(t, "1 2 1000\r2 1 1000\r3 3 1000", r.PostForm.Get("matrix"))
		assert.Equal(t, "50", r.PostForm.Get("stair"))
		assert.Equal(t, "Y0", r.PostForm.Get("modell"))
		assert.Equal(t, "Finland\nDenmark\nIceland", r.PostForm.Get("object"))
		assert.Equal(t, "A\nB\nY", r.PostForm.Get("attribute"))
		assert.Equal(t, "Futtatás", r.PostForm.Get("button2"))

		_, _ = w.Write([]byte(resultTable(map[string]string{
			"FINLAND": "1010,5",
			"denmark": "998",
			"Iceland": "990.25",
		})))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	out, err := newTestClient(srv).Run(context.Background(), Submission{
		MatrixText:     "1 2 1000\r2 1 1000\r3 3 1000",
		ObjectNames:    []string{"Finland", "Denmark", "Iceland"},
		AttributeNames: []string{"A", "B", "Y"},
	})
	require.NoError(t, err)

	assert.True(t, out.Automated)
	assert.Equal(t, "COCO Y0 automation succeeded.", out.Message)
	assert.Equal(t, "lf", out.Candidate)
	assert.Equal(t, srv.URL+"/submit.php", out.Target)
	require.Len(t, out.Estimations, 3)
	assert.InDelta(t, 1010.5, *out.Estimations[0], 1e-9)
	assert.InDelta(t, 998.0, *out.Estimations[1], 1e-9)
	assert.InDelta(t, 990.25, *out.Estimations[2], 1e-9)
	assert.Contains(t, out.RawHTML, "<table>")
	assert.Len(t, out.Attempts, 1)
}

func TestRun_ParseThreshold(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		resolved  int
		automated bool
	}{
		{"eight of ten accepted", 8, true},
		{"seven of ten rejected", 7, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			objects := names(10)
			rows := make(map[string]string)
			for i := 0; i < tt.resolved; i++ {
				rows[objects[i]] = fmt.Sprintf("%d", 900+i)
			}

			var posts atomic.Int32
			mux := http.NewServeMux()
			mux.HandleFunc("/form", func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(formPage))
			})
			submit := func(w http.ResponseWriter, _ *http.Request) {
				posts.Add(1)
				_, _ = w.Write([]byte(resultTable(rows)))
			}
			mux.HandleFunc("/submit.php", submit)
			mux.HandleFunc("/engine3", submit)
			srv := httptest.NewServer(mux)
			defer srv.Close()

			out, err := newTestClient(srv).Run(context.Background(), Submission{ObjectNames: objects})
			require.NoError(t, err)
			assert.Equal(t, tt.automated, out.Automated)

			if tt.automated {
				assert.Equal(t, 8, Plausible(out.Estimations))
				assert.Nil(t, out.Estimations[8])
				assert.Equal(t, int32(1), posts.Load())
				return
			}
			// Two candidates × two targets, none retried.
			assert.Equal(t, int32(4), posts.Load())
			assert.Empty(t, out.Estimations)
			assert.NotNil(t, out.Estimations)
			assert.Equal(t,
				"COCO could not be executed automatically (COCO responded but estimation rows could not be parsed reliably.). Use matrix export + manual estimation paste fallback.",
				out.Message)
			require.Len(t, out.Attempts, 4)
			assert.Equal(t, "crlf", out.Attempts[3].Candidate)
		})
	}
}

func TestRun_SecondCandidateUsesCRLF(t *testing.T) {
	t.Parallel()

	objects := []string{"A", "B", "C", "D"}
	mux := http.NewServeMux()
	mux.HandleFunc("/form", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<form><input type="hidden" name="k" value="v"></form>`))
	})
	mux.HandleFunc("/engine3", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		if r.PostForm.Get("stair") != "4" {
			_, _ = w.Write([]byte("<p>error</p>"))
			return
		}
		assert.Equal(t, "A\r\nB\r\nC\r\nD", r.PostForm.Get("object"))
		_, _ = w.Write([]byte(resultTable(map[string]string{"A": "1", "B": "2", "C": "3", "D": "4"})))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	out, err := newTestClient(srv).Run(context.Background(), Submission{ObjectNames: objects})
	require.NoError(t, err)
	assert.True(t, out.Automated)
	assert.Equal(t, "crlf", out.Candidate)
	// No form action: the engine endpoint is the only target.
	assert.Equal(t, srv.URL+"/engine3", out.Target)
	assert.Len(t, out.Attempts, 2)
}

func TestRun_DetailPage(t *testing.T) {
	t.Parallel()

	objects := []string{"A", "B", "C"}
	mux := http.NewServeMux()
	mux.HandleFunc("/form", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(formPage))
	})
	mux.HandleFunc("/submit.php", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<p>Job queued.</p><a href="result/detail.php?id=7">Open URL</a>`))
	})
	mux.HandleFunc("/result/detail.php", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "7", r.URL.Query().Get("id"))
		assert.NotEmpty(t, r.Header.Get("Referer"))
		_, _ = w.Write([]byte(resultTable(map[string]string{"A": "1001", "B": "1000", "C": "999"})))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	out, err := newTestClient(srv).Run(context.Background(), Submission{ObjectNames: objects})
	require.NoError(t, err)
	assert.True(t, out.Automated)
	assert.Equal(t, "COCO Y0 automation succeeded (detail page parse).", out.Message)
	assert.Equal(t, srv.URL+"/submit.php", out.Target)
	require.Len(t, out.Attempts, 1)
	assert.Equal(t, srv.URL+"/result/detail.php?id=7", out.Attempts[0].Detail)
}

func TestRun_FormFetchRetriesThenSucceeds(t *testing.T) {
	t.Parallel()

	var formCalls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/form", func(w http.ResponseWriter, _ *http.Request) {
		if formCalls.Add(1) <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(formPage))
	})
	mux.HandleFunc("/submit.php", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(resultTable(map[string]string{"A": "5", "B": "6", "C": "7"})))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	out, err := newTestClient(srv).Run(context.Background(), Submission{ObjectNames: []string{"A", "B", "C"}})
	require.NoError(t, err)
	assert.True(t, out.Automated)
	assert.Equal(t, int32(3), formCalls.Load())
}

func TestRun_FormFetchFails(t *testing.T) {
	t.Parallel()

	var formCalls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		formCalls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	out, err := newTestClient(srv).Run(context.Background(), Submission{ObjectNames: []string{"A"}})
	require.NoError(t, err)
	assert.False(t, out.Automated)
	assert.Equal(t, int32(3), formCalls.Load())
	assert.True(t, strings.HasPrefix(out.Message, "COCO network fetch failed (HTTP 502"))
	assert.True(t, strings.HasSuffix(out.Message, "Use manual fallback (matrix/object/attribute + paste estimations)."))
	assert.Empty(t, out.RawHTML)
}

func TestRun_SubmitServerErrorReason(t *testing.T) {
	t.Parallel()

	var posts atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/form", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<form></form>`))
	})
	mux.HandleFunc("/engine3", func(w http.ResponseWriter, _ *http.Request) {
		posts.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	out, err := newTestClient(srv).Run(context.Background(), Submission{ObjectNames: []string{"A"}})
	require.NoError(t, err)
	assert.False(t, out.Automated)
	// Two candidates, one target, three attempts each.
	assert.Equal(t, int32(6), posts.Load())
	assert.Contains(t, out.Message, "POST failed ("+srv.URL+"/engine3): HTTP 500")
}

func TestRun_ContextCancelled(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(formPage))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestClient(srv).Run(ctx, Submission{ObjectNames: []string{"A"}})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestHealth(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		status int
		ok     bool
	}{
		{"reachable", http.StatusOK, true},
		{"not found", http.StatusNotFound, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			rep, err := newTestClient(srv).Health(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.ok, rep.OK)
			assert.Equal(t, tt.status, rep.Status)
			assert.Equal(t, srv.URL+"/form", rep.URL)
			assert.GreaterOrEqual(t, rep.LatencyMs, int64(0))
		})
	}
}

func TestHealth_Unreachable(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := newTestClient(srv).Health(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 503")
	assert.Equal(t, int32(2), calls.Load())
}
