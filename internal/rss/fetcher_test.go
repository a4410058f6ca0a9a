package rss

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/iabetor/newsalert/internal/failure"
)

func setupTestServer(status int, content string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/xml")
		w.WriteHeader(status)
		fmt.Fprint(w, content)
	}))
}

func TestFetchItems(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		fmt.Fprint(w, testRSSFeed)
	}))
	defer srv.Close()

	fetcher := NewFetcher(5*time.Second, "newsalert-test")
	items, err := fetcher.FetchItems(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("FetchItems 失败: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("期望 3 条，得到 %d 条", len(items))
	}
	if gotUA != "newsalert-test" {
		t.Errorf("User-Agent 不匹配: %s", gotUA)
	}
}

func TestFetchNonSuccessStatus(t *testing.T) {
	srv := setupTestServer(http.StatusServiceUnavailable, "down")
	defer srv.Close()

	_, err := NewFetcher(0, "").FetchItems(context.Background(), srv.URL)
	if err == nil {
		t.Fatal("期望 503 返回错误")
	}
	if failure.KindOf(err) != failure.Fetch {
		t.Errorf("错误类别应为 fetch, got %v", failure.KindOf(err))
	}
}

func TestFetchUnreachable(t *testing.T) {
	srv := setupTestServer(http.StatusOK, testRSSFeed)
	url := srv.URL
	srv.Close()

	_, err := NewFetcher(time.Second, "").Fetch(context.Background(), url)
	if failure.KindOf(err) != failure.Fetch {
		t.Errorf("错误类别应为 fetch, got %v (%v)", failure.KindOf(err), err)
	}
}

func TestFetchItemsInvalidDocument(t *testing.T) {
	srv := setupTestServer(http.StatusOK, "<html><body>maintenance</body></html>")
	defer srv.Close()

	_, err := NewFetcher(0, "").FetchItems(context.Background(), srv.URL)
	if err == nil {
		t.Fatal("期望无效文档返回错误")
	}
	var fe *failure.Error
	if !errors.As(err, &fe) || fe.Kind != failure.Parse || fe.URL != srv.URL {
		t.Errorf("错误应为带地址的 parse 错误: %v", err)
	}
}
