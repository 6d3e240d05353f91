package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"blockvault/internal/config"
	"blockvault/internal/pinning"
	"blockvault/internal/repository/nonceRepo"
	"blockvault/internal/repository/tokenBlacklist"
	"blockvault/internal/service/fileService"
	"blockvault/pkg/faults"
	"blockvault/pkg/logger"
	"blockvault/pkg/middleware"

	"github.com/coocood/freecache"
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

const (
	loginMessageFormat = "BlockVault login nonce: %s"
	contentCacheTTL    = 10 * 60 // seconds
	maxProxiedContent  = 32 * 1024 * 1024
)

type handler struct {
	ctx       context.Context
	cfg       *config.GatewayConfig
	svc       *fileService.FileService
	store     pinning.Store
	nonces    *nonceRepo.NonceRepo
	blacklist *tokenBlacklist.BlacklistRepo
	contents  *freecache.Cache
}

type nonceRequest struct {
	Address string `json:"address" binding:"required"`
}

func (h *handler) handleNonce(c *gin.Context) {
	var req nonceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !common.IsHexAddress(req.Address) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid address"})
		return
	}

	nonce, err := h.nonces.Issue(c.Request.Context(), req.Address)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to issue nonce"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"nonce":   nonce,
		"message": fmt.Sprintf(loginMessageFormat, nonce),
	})
}

type loginRequest struct {
	Address   string `json:"address" binding:"required"`
	Signature string `json:"signature" binding:"required"`
}

func (h *handler) handleLogin(c *gin.Context) {
	log := logger.GetLogger(h.ctx)

	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !common.IsHexAddress(req.Address) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid address"})
		return
	}

	nonce, err := h.nonces.Consume(c.Request.Context(), req.Address)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "request a nonce first"})
		return
	}

	message := fmt.Sprintf(loginMessageFormat, nonce)
	recovered, err := recoverSigner(message, req.Signature)
	if err != nil || !strings.EqualFold(recovered.Hex(), req.Address) {
		log.Warn("signature verification failed", zap.String("address", req.Address))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "signature does not match address"})
		return
	}

	claims := &middleware.Claims{
		Address: common.HexToAddress(req.Address).Hex(),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(h.cfg.TokenTTL)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(h.cfg.JWTSecret))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to issue token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token})
}

// requireFreshToken rejects tokens that were revoked through logout. It runs
// before signature validation so revocation wins even for valid tokens.
func (h *handler) requireFreshToken(c *gin.Context) {
	raw := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
	if raw == "" {
		c.Next()
		return
	}
	revoked, err := h.blacklist.IsTokenBlacklisted(c.Request.Context(), raw)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "token check failed"})
		return
	}
	if revoked {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "token revoked"})
		return
	}
	c.Next()
}

func (h *handler) handleLogout(c *gin.Context) {
	raw := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")

	claims := &middleware.Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed token"})
		return
	}
	expiresAt := time.Now().Add(h.cfg.TokenTTL)
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}

	if err := h.blacklist.AddToken(c.Request.Context(), raw, expiresAt); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to revoke token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// recoverSigner recovers the address behind an EIP-191 personal-sign
// signature over message.
func recoverSigner(message, sigHex string) (common.Address, error) {
	sig, err := hexutil.Decode(sigHex)
	if err != nil {
		return common.Address{}, err
	}
	if len(sig) != 65 {
		return common.Address{}, fmt.Errorf("signature must be 65 bytes, got %d", len(sig))
	}
	// wallets return v as 27/28, go-ethereum expects 0/1
	if sig[64] >= 27 {
		sig = append([]byte{}, sig...)
		sig[64] -= 27
	}
	pub, err := crypto.SigToPub(accounts.TextHash([]byte(message)), sig)
	if err != nil {
		return common.Address{}, err
	}
	return crypto.PubkeyToAddress(*pub), nil
}

func (h *handler) handleUpload(c *gin.Context) {
	uploaded, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("no file provided: %v", err)})
		return
	}

	src, err := uploaded.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to open uploaded file"})
		return
	}
	defer src.Close()

	mimeType := uploaded.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	file, err := h.svc.UploadFile(h.ctx, uploaded.Filename, mimeType, src, uploaded.Size, nil)
	if err != nil {
		h.renderFault(c, err)
		return
	}

	c.JSON(http.StatusOK, file)
}

func (h *handler) handleListFiles(c *gin.Context) {
	files, err := h.svc.ListOwnedFiles(h.ctx)
	if err != nil {
		h.renderFault(c, err)
		return
	}
	c.JSON(http.StatusOK, files)
}

func (h *handler) handleListShared(c *gin.Context) {
	files, err := h.svc.ListSharedFiles(h.ctx)
	if err != nil {
		h.renderFault(c, err)
		return
	}
	c.JSON(http.StatusOK, files)
}

func (h *handler) handleFileDetails(c *gin.Context) {
	file, err := h.svc.GetFileDetails(h.ctx, c.Param("id"))
	if err != nil {
		h.renderFault(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"file": file,
		"url":  h.store.URLFor(file.ContentID),
	})
}

func (h *handler) handleDeleteFile(c *gin.Context) {
	if err := h.svc.DeleteFile(h.ctx, c.Param("id")); err != nil {
		h.renderFault(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

type shareRequest struct {
	Recipient string `json:"recipient" binding:"required"`
}

func (h *handler) handleShareFile(c *gin.Context) {
	var req shareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ok, err := h.svc.ShareFile(h.ctx, c.Param("id"), req.Recipient)
	if err != nil {
		h.renderFault(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": ok})
}

func (h *handler) handleHistory(c *gin.Context) {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = parsed
	}

	entries, err := h.svc.History(h.ctx, limit)
	if err != nil {
		h.renderFault(c, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}

// handleContent proxies pinned content through an in-memory cache so repeated
// reads of the same object skip the public gateway.
func (h *handler) handleContent(c *gin.Context) {
	cid := c.Param("cid")
	if !pinning.IsValidCID(cid) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid content id"})
		return
	}

	key := []byte(cid)
	if body, err := h.contents.Get(key); err == nil {
		mimeType, _ := h.contents.Get([]byte(cid + ":type"))
		c.Data(http.StatusOK, string(mimeType), body)
		return
	}

	resp, err := http.Get(h.store.URLFor(cid))
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "content gateway unreachable"})
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		c.JSON(http.StatusBadGateway, gin.H{"error": fmt.Sprintf("content gateway returned %d", resp.StatusCode)})
		return
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxProxiedContent))
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to read content"})
		return
	}

	mimeType := resp.Header.Get("Content-Type")
	h.contents.Set(key, body, contentCacheTTL)
	h.contents.Set([]byte(cid+":type"), []byte(mimeType), contentCacheTTL)

	c.Data(http.StatusOK, mimeType, body)
}

func (h *handler) renderFault(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch faults.KindOf(err) {
	case faults.Validation:
		status = http.StatusBadRequest
	case faults.NotFound:
		status = http.StatusNotFound
	case faults.NoSession:
		status = http.StatusServiceUnavailable
	case faults.RemoteUnavailable, faults.Unconfirmed:
		status = http.StatusBadGateway
	case faults.Timeout:
		status = http.StatusGatewayTimeout
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
