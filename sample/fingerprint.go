package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	fingerprint "github.com/high-horse/fingerprint"
	"github.com/high-horse/fingerprint/config"
	"github.com/high-horse/fingerprint/enhance"
	"github.com/high-horse/fingerprint/render"
	"github.com/high-horse/fingerprint/store"
)

type service struct {
	cfg     *config.DefaultConfig
	logger  *zap.Logger
	creator *fingerprint.TemplateCreator
	db      *store.DB
}

func newService(cfg *config.DefaultConfig, logger *zap.Logger, db *store.DB) *service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &service{
		cfg:     cfg,
		logger:  logger,
		creator: fingerprint.NewTemplateCreator(cfg, logger, nil),
		db:      db,
	}
}

// template decodes and enhances one request image.
func (s *service) template(c *fiber.Ctx, field, encoded string) (*fingerprint.Template, error) {
	img, err := decodeImage(field, encoded, s.cfg.Server.MaxImageBytes)
	if err != nil {
		return nil, err
	}
	t, err := s.creator.Template(c.UserContext(), img)
	if err != nil && !errors.Is(err, enhance.ErrNoValidRegions) {
		return nil, httpError(fmt.Errorf("failed to process %s: %w", field, err))
	}
	return t, nil
}

func (s *service) matchFingerprints(c *fiber.Ctx) error {
	start := time.Now()

	var req MatchRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body: "+err.Error())
	}
	probe, err := s.template(c, "probe_image", req.ProbeImage)
	if err != nil {
		return err
	}
	candidate, err := s.template(c, "candidate_image", req.CandidateImage)
	if err != nil {
		return err
	}

	matcher := fingerprint.NewMatcher(s.cfg, s.logger, probe)
	score := matcher.Match(candidate)
	response := MatchResponse{
		Score:   score,
		Match:   matcher.IsMatch(score),
		Elapsed: time.Since(start).String(),
	}
	if response.Match {
		response.Message = fmt.Sprintf("match found with score %d", score)
	} else {
		response.Message = fmt.Sprintf("no match, score %d", score)
	}
	s.logger.Info("fingerprints compared", zap.Int("score", score), zap.Bool("match", response.Match), zap.Duration("elapsed", time.Since(start)))
	return c.JSON(response)
}

func (s *service) processFingerprint(c *fiber.Ctx) error {
	start := time.Now()

	var req ImageRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body: "+err.Error())
	}
	t, err := s.template(c, "image", req.Image)
	if err != nil {
		return err
	}

	features := t.Features(s.cfg.Match)
	overlay := render.Keypoints(t.Fingerprint, features.Keypoints, fmt.Sprintf("%d keypoints", features.Len()))
	enhanced, err := encodePNG(t.Fingerprint)
	if err != nil {
		return err
	}
	overlayPNG, err := encodePNG(overlay)
	if err != nil {
		return err
	}
	b := t.Fingerprint.Bounds()
	return c.JSON(ProcessResponse{
		Width:     b.Dx(),
		Height:    b.Dy(),
		Frequency: t.Frequency,
		Keypoints: features.Len(),
		Enhanced:  enhanced,
		Overlay:   overlayPNG,
		Elapsed:   time.Since(start).String(),
	})
}

func (s *service) enroll(c *fiber.Ctx) error {
	var req EnrollRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body: "+err.Error())
	}
	level, err := fingerprint.ParseAccessLevel(req.AccessLevel)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if req.Name == "" {
		return fiber.NewError(fiber.StatusBadRequest, "name is required")
	}
	img, err := decodeImage("image", req.Image, s.cfg.Server.MaxImageBytes)
	if err != nil {
		return err
	}

	session := fingerprint.NewSession(s.cfg, s.creator, s.db, s.logger)
	if err := session.Take(img); err != nil {
		return httpError(err)
	}
	if err := session.Process(c.UserContext()); err != nil {
		return httpError(err)
	}
	user, err := session.Enroll(c.UserContext(), req.Name, level)
	if err != nil {
		return httpError(err)
	}
	return c.Status(fiber.StatusCreated).JSON(EnrollResponse{User: user, Role: user.AccessLevel.Role()})
}

func (s *service) identify(c *fiber.Ctx) error {
	var req ImageRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body: "+err.Error())
	}
	img, err := decodeImage("image", req.Image, s.cfg.Server.MaxImageBytes)
	if err != nil {
		return err
	}

	session := fingerprint.NewSession(s.cfg, s.creator, s.db, s.logger)
	if err := session.Take(img); err != nil {
		return httpError(err)
	}
	if err := session.Process(c.UserContext()); err != nil {
		return httpError(err)
	}
	id, err := session.Analyze(c.UserContext())
	if err != nil {
		return httpError(err)
	}

	response := IdentifyResponse{Matched: id.Matched, Score: id.Score, Message: "access denied"}
	if id.Matched {
		response.User = id.User
		response.Role = id.User.AccessLevel.Role()
		response.Message = "access granted"
	}
	return c.JSON(response)
}

func (s *service) users(c *fiber.Ctx) error {
	users, err := s.db.Users(c.UserContext())
	if err != nil {
		return err
	}
	if users == nil {
		users = []*fingerprint.User{}
	}
	return c.JSON(users)
}

func (s *service) deleteUser(c *fiber.Ctx) error {
	name := c.Params("fingerprint")
	if err := s.db.DeleteUser(c.UserContext(), name); err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return fiber.NewError(fiber.StatusNotFound, err.Error())
		}
		return err
	}
	s.logger.Info("user deleted", zap.String("fingerprint", name))
	return c.SendStatus(fiber.StatusNoContent)
}

// httpError maps library errors onto status codes.
func httpError(err error) error {
	code := fiber.StatusInternalServerError
	switch {
	case errors.Is(err, fingerprint.ErrUnsupportedFormat):
		code = fiber.StatusUnsupportedMediaType
	case errors.Is(err, enhance.ErrInvalidDimensions), errors.Is(err, fingerprint.ErrEmptyTemplate):
		code = fiber.StatusUnprocessableEntity
	case errors.Is(err, fingerprint.ErrInvalidTransition):
		code = fiber.StatusConflict
	case errors.Is(err, enhance.ErrTimeout):
		code = fiber.StatusGatewayTimeout
	}
	return fiber.NewError(code, err.Error())
}
