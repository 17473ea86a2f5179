package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/static"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/example/plantid/internal/apperrors"
	"github.com/example/plantid/internal/auth"
	"github.com/example/plantid/internal/logging"
	"github.com/example/plantid/internal/media"
	"github.com/example/plantid/internal/report"
	"github.com/example/plantid/internal/repository"
	"github.com/example/plantid/internal/session"
	"github.com/example/plantid/internal/usecase"
)

// DefaultMaxUploadSize bounds a single upload request.
const DefaultMaxUploadSize = 10 << 20

// Identifier is the identification flow as seen by the handlers.
type Identifier interface {
	Identify(ctx context.Context, userID string, upload *media.UploadedImage) (*usecase.Identification, error)
	GetHistory(ctx context.Context, userID string) (*usecase.HistorySummary, error)
}

// Accounts is the account flow as seen by the handlers.
type Accounts interface {
	Register(ctx context.Context, form usecase.Registration) (*repository.User, error)
	Authenticate(ctx context.Context, username, password string) (*repository.User, error)
}

// Options collects the handler dependencies.
type Options struct {
	Identifier    Identifier
	Accounts      Accounts
	Issuer        *auth.Issuer
	Flashes       session.FlashStore
	Revocations   session.RevocationStore
	Logger        *zap.Logger
	MediaRoot     string
	MediaURL      string
	MaxUploadSize int64
	SecureCookies bool
}

// Handler serves the HTML pages.
type Handler struct {
	identifier    Identifier
	accounts      Accounts
	issuer        *auth.Issuer
	flashes       session.FlashStore
	revocations   session.RevocationStore
	logger        *zap.Logger
	mediaRoot     string
	mediaURL      string
	maxUploadSize int64
	secureCookies bool
	sameSite      http.SameSite
}

type loginForm struct {
	Username string `form:"username" binding:"required,max=150"`
	Password string `form:"password" binding:"required"`
	Next     string `form:"next"`
}

type registerForm struct {
	Username  string `form:"username" binding:"required,max=150"`
	Password1 string `form:"password1" binding:"required"`
	Password2 string `form:"password2" binding:"required"`
}

// New builds a Handler from opts.
func New(opts Options) *Handler {
	maxUpload := opts.MaxUploadSize
	if maxUpload <= 0 {
		maxUpload = DefaultMaxUploadSize
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		identifier:    opts.Identifier,
		accounts:      opts.Accounts,
		issuer:        opts.Issuer,
		flashes:       opts.Flashes,
		revocations:   opts.Revocations,
		logger:        logger.Named("handlers"),
		mediaRoot:     opts.MediaRoot,
		mediaURL:      opts.MediaURL,
		maxUploadSize: maxUpload,
		secureCookies: opts.SecureCookies,
		sameSite:      http.SameSiteLaxMode,
	}
}

// RegisterRoutes wires the HTTP handlers to the Gin router.
func (h *Handler) RegisterRoutes(router *gin.Engine) error {
	tmpl, err := LoadTemplates()
	if err != nil {
		return fmt.Errorf("load templates: %w", err)
	}
	router.SetHTMLTemplate(tmpl)
	router.MaxMultipartMemory = h.maxUploadSize

	if h.mediaRoot != "" && h.mediaURL != "" {
		router.Use(static.Serve(strings.TrimSuffix(h.mediaURL, "/"), static.LocalFile(h.mediaRoot, false)))
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	pages := router.Group("/", h.flashSession())
	pages.GET("/login", h.loginPage)
	pages.POST("/login", h.login)
	pages.GET("/logout", h.logout)
	pages.POST("/logout", h.logout)
	pages.GET("/register", h.registerPage)
	pages.POST("/register", h.register)

	protected := pages.Group("/", auth.RequireLogin(h.issuer, h.revocations, h.logger))
	protected.GET("/", h.index)
	protected.GET("/plants/", h.index)
	protected.GET("/identify", h.redirectToIndex)
	protected.POST("/identify", h.identify)
	protected.GET("/plants/identify/", h.redirectToIndex)
	protected.POST("/plants/identify/", h.identify)
	protected.GET("/history", h.history)

	return nil
}

func (h *Handler) index(c *gin.Context) {
	h.render(c, http.StatusOK, "index.html", gin.H{"title": "Identify"})
}

func (h *Handler) redirectToIndex(c *gin.Context) {
	c.Redirect(http.StatusFound, "/")
}

func (h *Handler) identify(c *gin.Context) {
	ctx := c.Request.Context()
	userID, _ := auth.GetUserID(ctx)

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadSize)
	file, err := c.FormFile("image")
	if err != nil {
		if isTooLarge(err) {
			h.fail(c, apperrors.NewValidationError(
				fmt.Sprintf("Error processing image: the upload exceeds %d bytes", h.maxUploadSize), err))
			return
		}
		h.fail(c, apperrors.NewValidationError(usecase.MissingImageMessage, err))
		return
	}

	src, err := file.Open()
	if err != nil {
		h.fail(c, apperrors.NewStorageError("unable to open image", err))
		return
	}
	defer src.Close()

	result, err := h.identifier.Identify(ctx, userID, &media.UploadedImage{
		Filename:    file.Filename,
		ContentType: file.Header.Get("Content-Type"),
		Body:        src,
	})
	if err != nil {
		h.fail(c, err)
		return
	}

	h.render(c, http.StatusOK, "result.html", gin.H{
		"title":      "Result",
		"imageUrl":   result.Image.URL,
		"plantInfo":  result.Report.Text,
		"sections":   result.Report.Sections,
		"confidence": result.Report.Confidence,
		"requestId":  result.RequestID,
	})
}

// fail logs err, flashes a notice and sends the user back to the upload form.
func (h *Handler) fail(c *gin.Context, err error) {
	fields := []zap.Field{zap.Error(err)}
	if op, ok := logging.OperationOf(err); ok {
		fields = append(fields, zap.String("failed_operation", op))
	}
	h.logger.Error("Plant identification error", fields...)
	_ = c.Error(err)

	message := apperrors.UserMessage(err)
	if !apperrors.IsType(err, apperrors.ErrorTypeValidation) {
		message = "Error processing image: " + message
	}
	h.flash(c, session.LevelError, message)
	c.Redirect(http.StatusFound, "/")
}

func (h *Handler) history(c *gin.Context) {
	userID, _ := auth.GetUserID(c.Request.Context())
	summary, err := h.identifier.GetHistory(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("failed to load history", zap.Error(err))
		h.flash(c, session.LevelError, "Unable to load your history right now.")
		c.Redirect(http.StatusFound, "/")
		return
	}
	h.render(c, http.StatusOK, "history.html", gin.H{
		"title":     "History",
		"summary":   summary,
		"threshold": report.LowConfidenceThreshold,
	})
}

func (h *Handler) loginPage(c *gin.Context) {
	if _, ok := auth.ParseActiveRequest(c, h.issuer, h.revocations, h.logger); ok {
		c.Redirect(http.StatusFound, "/")
		return
	}
	h.render(c, http.StatusOK, "login.html", gin.H{"title": "Log in", "next": c.Query("next")})
}

func (h *Handler) login(c *gin.Context) {
	var form loginForm
	if err := c.ShouldBind(&form); err != nil {
		h.render(c, http.StatusOK, "login.html", gin.H{
			"title":        "Log in",
			"error":        "Please enter a username and password.",
			"formUsername": form.Username,
			"next":         form.Next,
		})
		return
	}

	user, err := h.accounts.Authenticate(c.Request.Context(), form.Username, form.Password)
	if err != nil {
		if !apperrors.IsType(err, apperrors.ErrorTypeUnauthorized) && !apperrors.IsType(err, apperrors.ErrorTypeValidation) {
			h.logger.Error("login failed", zap.Error(err))
		}
		h.render(c, http.StatusOK, "login.html", gin.H{
			"title":        "Log in",
			"error":        apperrors.UserMessage(err),
			"formUsername": form.Username,
			"next":         form.Next,
		})
		return
	}

	token, err := h.issuer.Issue(fmt.Sprint(user.ID), user.Username)
	if err != nil {
		h.logger.Error("failed to issue session", zap.Error(err))
		h.render(c, http.StatusOK, "login.html", gin.H{"title": "Log in", "error": "Unable to sign in right now."})
		return
	}

	c.SetSameSite(h.sameSite)
	c.SetCookie(auth.CookieName, token.Value, int(h.issuer.TTL().Seconds()), "/", "", h.secureCookies, true)
	c.Redirect(http.StatusFound, safeNext(form.Next))
}

func (h *Handler) logout(c *gin.Context) {
	if claims, ok := auth.ParseRequest(c, h.issuer); ok && h.revocations != nil && claims.ExpiresAt != nil {
		ttl := time.Until(claims.ExpiresAt.Time)
		if err := h.revocations.Revoke(c.Request.Context(), claims.ID, ttl); err != nil {
			h.logger.Warn("failed to revoke session", zap.Error(err))
		}
	}
	c.SetSameSite(h.sameSite)
	c.SetCookie(auth.CookieName, "", -1, "/", "", h.secureCookies, true)
	c.Redirect(http.StatusFound, "/")
}

func (h *Handler) registerPage(c *gin.Context) {
	h.render(c, http.StatusOK, "register.html", gin.H{"title": "Register"})
}

func (h *Handler) register(c *gin.Context) {
	var form registerForm
	if err := c.ShouldBind(&form); err != nil {
		h.render(c, http.StatusOK, "register.html", gin.H{
			"title":        "Register",
			"error":        "Please fill in every field; usernames are 150 characters or fewer.",
			"formUsername": form.Username,
		})
		return
	}

	user, err := h.accounts.Register(c.Request.Context(), usecase.Registration{
		Username:  form.Username,
		Password1: form.Password1,
		Password2: form.Password2,
	})
	if err != nil {
		if apperrors.IsType(err, apperrors.ErrorTypeInternal) {
			h.logger.Error("registration failed", zap.Error(err))
		}
		h.render(c, http.StatusOK, "register.html", gin.H{
			"title":        "Register",
			"error":        apperrors.UserMessage(err),
			"formUsername": form.Username,
		})
		return
	}

	h.flash(c, session.LevelSuccess, fmt.Sprintf("Account created for %s. You can now log in.", user.Username))
	c.Redirect(http.StatusFound, auth.LoginPath)
}

func (h *Handler) render(c *gin.Context, status int, name string, data gin.H) {
	data["username"] = auth.GetUsername(c.Request.Context())
	if data["username"] == "" {
		if claims, ok := auth.ParseRequest(c, h.issuer); ok && name != "login.html" {
			data["username"] = claims.Username
		}
	}
	data["flashes"] = h.popFlashes(c)
	c.HTML(status, name, data)
}

func (h *Handler) flash(c *gin.Context, level, message string) {
	sid := c.GetString(flashSIDKey)
	if h.flashes == nil || sid == "" {
		return
	}
	if err := h.flashes.PushFlash(c.Request.Context(), sid, session.Flash{Level: level, Message: message}); err != nil {
		h.logger.Warn("failed to queue flash", zap.Error(err))
	}
}

func (h *Handler) popFlashes(c *gin.Context) []session.Flash {
	sid := c.GetString(flashSIDKey)
	if h.flashes == nil || sid == "" {
		return nil
	}
	flashes, err := h.flashes.PopFlashes(c.Request.Context(), sid)
	if err != nil {
		h.logger.Warn("failed to read flashes", zap.Error(err))
		return nil
	}
	return flashes
}

func isTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return true
	}
	return strings.Contains(err.Error(), "request body too large")
}

// safeNext only follows local absolute paths.
func safeNext(next string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return "/"
	}
	return next
}
