package ghmock

import (
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// DefaultRef is the ref used by the contents API when none is given.
const DefaultRef = "master"

const (
	textPlain      = "text/plain; charset=utf-8"
	defaultPerPage = 30
	maxPerPage     = 100
)

type createGistRequest struct {
	Description string `json:"description"`
	Public      bool   `json:"public"`
	Files       map[string]struct {
		Content string `json:"content"`
	} `json:"files" binding:"required"`
}

type createCommentRequest struct {
	Body string `json:"body"`
}

// NewRouter returns a gin engine serving s. Raw content is served under
// /raw, so clients use "<server>/raw" as their raw base URL.
func NewRouter(s *Store, log *slog.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), otelgin.Middleware("mock-github"), requestLogger(log))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	registerRepoRoutes(r, s)
	registerWebRoutes(r, s)
	registerWriteRoutes(r, s, log)
	return r
}

func registerRepoRoutes(r *gin.Engine, s *Store) {
	// Single file object for exact matches, array listing for directories.
	r.GET("/repos/:owner/:repo/contents/*path", func(c *gin.Context) {
		owner, repo := c.Param("owner"), c.Param("repo")
		path := strings.Trim(c.Param("path"), "/")
		ref := c.DefaultQuery("ref", DefaultRef)

		if content, ok := s.getFile(owner, repo, ref, path); ok && path != "" {
			c.JSON(http.StatusOK, gin.H{
				"type":     "file",
				"name":     path[strings.LastIndex(path, "/")+1:],
				"path":     path,
				"size":     len(content),
				"encoding": "base64",
				"content":  base64.StdEncoding.EncodeToString([]byte(content)),
			})
			return
		}

		if entries := s.listDir(owner, repo, ref, path); len(entries) > 0 {
			c.JSON(http.StatusOK, entries)
			return
		}

		notFound(c)
	})

	r.GET("/repos/:owner/:repo/pulls/:number", func(c *gin.Context) {
		owner, repo := c.Param("owner"), c.Param("repo")
		pr, ok := lookupPR(c, s, c.Param("number"))
		if !ok {
			return
		}

		base := origin(c)
		head := ""
		if n := len(pr.Commits); n > 0 {
			head = pr.Commits[n-1].SHA
		}
		c.JSON(http.StatusOK, gin.H{
			"number":          pr.Number,
			"title":           pr.Title,
			"state":           "open",
			"mergeable_state": pr.MergeableState,
			"html_url":        fmt.Sprintf("%s/%s/%s/pull/%d", base, owner, repo, pr.Number),
			"diff_url":        fmt.Sprintf("%s/%s/%s/pull/%d.diff", base, owner, repo, pr.Number),
			"head":            gin.H{"sha": head},
		})
	})

	// Paginated like the real API: per_page (max 100) and page, with a Link
	// header pointing at the next page.
	r.GET("/repos/:owner/:repo/pulls/:number/commits", func(c *gin.Context) {
		pr, ok := lookupPR(c, s, c.Param("number"))
		if !ok {
			return
		}

		perPage := queryInt(c, "per_page", defaultPerPage)
		if perPage > maxPerPage {
			perPage = maxPerPage
		}
		page := queryInt(c, "page", 1)

		start := min((page-1)*perPage, len(pr.Commits))
		end := min(start+perPage, len(pr.Commits))

		out := make([]gin.H, 0, end-start)
		for _, commit := range pr.Commits[start:end] {
			out = append(out, gin.H{
				"sha":    commit.SHA,
				"commit": gin.H{"message": commit.Message},
			})
		}

		if end < len(pr.Commits) {
			next := url.URL{Path: c.Request.URL.Path}
			q := url.Values{}
			q.Set("per_page", strconv.Itoa(perPage))
			q.Set("page", strconv.Itoa(page+1))
			next.RawQuery = q.Encode()
			c.Header("Link", fmt.Sprintf(`<%s%s>; rel="next"`, origin(c), next.String()))
		}
		c.JSON(http.StatusOK, out)
	})
}

// registerWebRoutes serves the non-API hosts: github.com diffs and raw content.
func registerWebRoutes(r *gin.Engine, s *Store) {
	r.GET("/:owner/:repo/pull/:number", func(c *gin.Context) {
		number, isDiff := strings.CutSuffix(c.Param("number"), ".diff")
		if !isDiff {
			c.String(http.StatusNotFound, "Not Found")
			return
		}
		n, err := strconv.Atoi(number)
		if err != nil {
			c.String(http.StatusNotFound, "Not Found")
			return
		}
		pr, ok := s.getPR(c.Param("owner"), c.Param("repo"), n)
		if !ok {
			c.String(http.StatusNotFound, "Not Found")
			return
		}
		c.Data(http.StatusOK, textPlain, []byte(pr.Diff))
	})

	r.GET("/raw/:owner/:repo/:ref/*path", func(c *gin.Context) {
		path := strings.Trim(c.Param("path"), "/")
		content, ok := s.getFile(c.Param("owner"), c.Param("repo"), c.Param("ref"), path)
		if !ok {
			c.Data(http.StatusNotFound, textPlain, []byte("404: Not Found"))
			return
		}
		c.Data(http.StatusOK, textPlain, []byte(content))
	})
}

func registerWriteRoutes(r *gin.Engine, s *Store, log *slog.Logger) {
	r.POST("/gists", func(c *gin.Context) {
		var req createGistRequest
		if err := c.ShouldBindJSON(&req); err != nil || len(req.Files) == 0 {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"message": "Validation Failed"})
			return
		}
		files := make(map[string]string, len(req.Files))
		for name, f := range req.Files {
			files[name] = f.Content
		}
		g := s.addGist(Gist{Description: req.Description, Public: req.Public, Files: files})
		log.Info("gist created", "id", g.ID, "files", len(files))
		c.JSON(http.StatusCreated, gin.H{
			"id":          g.ID,
			"html_url":    origin(c) + "/gist/" + g.ID,
			"description": g.Description,
			"public":      g.Public,
		})
	})

	r.POST("/repos/:owner/:repo/issues/:number/comments", func(c *gin.Context) {
		owner, repo := c.Param("owner"), c.Param("repo")
		n, err := strconv.Atoi(c.Param("number"))
		if err != nil || !s.hasRepo(owner, repo) {
			notFound(c)
			return
		}
		var req createCommentRequest
		if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Body) == "" {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"message": "Validation Failed"})
			return
		}
		cm := s.addComment(Comment{Owner: owner, Repo: repo, Number: n, Body: req.Body})
		log.Info("comment created", "repo", owner+"/"+repo, "number", n, "id", cm.ID)
		c.JSON(http.StatusCreated, gin.H{"id": cm.ID, "body": cm.Body})
	})
}

func lookupPR(c *gin.Context, s *Store, raw string) (PullRequest, bool) {
	n, err := strconv.Atoi(raw)
	if err != nil {
		notFound(c)
		return PullRequest{}, false
	}
	pr, ok := s.getPR(c.Param("owner"), c.Param("repo"), n)
	if !ok {
		notFound(c)
		return PullRequest{}, false
	}
	return pr, true
}

func notFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{
		"message":           "Not Found",
		"documentation_url": "https://docs.github.com/rest",
	})
}

func queryInt(c *gin.Context, key string, fallback int) int {
	n, err := strconv.Atoi(c.Query(key))
	if err != nil || n < 1 {
		return fallback
	}
	return n
}

// origin is the scheme and host the request was addressed to, so generated
// URLs point back at this server whatever port it listens on.
func origin(c *gin.Context) string {
	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + c.Request.Host
}

func requestLogger(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}
