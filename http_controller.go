package identity

import (
	"strconv"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/gofiber/fiber/v2"
)

// HTTPController maps the service operations 1:1 onto JSON endpoints.
// Every response is either {"data": ...} or {"error": {"kind", "message"}};
// credential material never appears in a payload.
type HTTPController struct {
	Service *CredentialService
	Logger  Logger
}

// HTTPControllerOption customizes the controller.
type HTTPControllerOption func(*HTTPController)

// WithControllerLogger overrides the controller logger.
func WithControllerLogger(logger Logger) HTTPControllerOption {
	return func(c *HTTPController) {
		if logger != nil {
			c.Logger = logger
		}
	}
}

// NewHTTPController creates a controller for the given service.
func NewHTTPController(service *CredentialService, opts ...HTTPControllerOption) *HTTPController {
	c := &HTTPController{
		Service: service,
		Logger:  defLogger{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}

	return c
}

// RegisterRoutes mounts the account endpoints on the app.
func RegisterRoutes(app *fiber.App, controller *HTTPController) {
	app.Post("/accounts", controller.Register)
	app.Get("/accounts", controller.List)
	app.Get("/accounts/:id", controller.GetByID)
	app.Put("/accounts/:email", controller.Update)
	app.Delete("/accounts/:id", controller.Delete)

	app.Post("/auth/login", controller.Login)

	app.Get("/verify-email", controller.VerifyEmail)
	app.Post("/verify-email/resend", controller.ResendVerification)

	app.Post("/password-reset", controller.RequestPasswordReset)
	app.Post("/password-reset/apply", controller.ApplyPasswordReset)
}

// Register handles POST /accounts.
func (c *HTTPController) Register(ctx *fiber.Ctx) error {
	payload := new(RegisterInput)
	if err := ctx.BodyParser(payload); err != nil {
		return c.renderError(ctx, invalidArgument(err))
	}

	account, err := c.Service.Register(ctx.UserContext(), *payload)
	if err != nil {
		return c.renderError(ctx, err)
	}

	return ctx.Status(fiber.StatusCreated).JSON(fiber.Map{
		"data":    account,
		"message": "Account created. Please verify your email address.",
	})
}

// LoginRequest is the POST /auth/login payload.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate implements the login input shape.
func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required),
	)
}

// Login handles POST /auth/login.
func (c *HTTPController) Login(ctx *fiber.Ctx) error {
	payload := new(LoginRequest)
	if err := ctx.BodyParser(payload); err != nil {
		return c.renderError(ctx, invalidArgument(err))
	}

	if err := payload.Validate(); err != nil {
		return c.renderError(ctx, invalidArgument(err))
	}

	token, account, err := c.Service.Authenticate(ctx.UserContext(), payload.Email, payload.Password)
	if err != nil {
		return c.renderError(ctx, err)
	}

	return ctx.JSON(fiber.Map{
		"data":  account,
		"token": token,
	})
}

// GetByID handles GET /accounts/:id.
func (c *HTTPController) GetByID(ctx *fiber.Ctx) error {
	id, err := strconv.ParseInt(ctx.Params("id"), 10, 64)
	if err != nil {
		return c.renderError(ctx, invalidArgumentWith("id must be an integer"))
	}

	account, err := c.Service.GetByID(ctx.UserContext(), id)
	if err != nil {
		return c.renderError(ctx, err)
	}

	return ctx.JSON(fiber.Map{"data": account})
}

// List handles GET /accounts.
func (c *HTTPController) List(ctx *fiber.Ctx) error {
	records, err := c.Service.List(ctx.UserContext())
	if err != nil {
		return c.renderError(ctx, err)
	}

	return ctx.JSON(fiber.Map{"data": records})
}

// Update handles PUT /accounts/:email.
func (c *HTTPController) Update(ctx *fiber.Ctx) error {
	payload := new(UpdateInput)
	if err := ctx.BodyParser(payload); err != nil {
		return c.renderError(ctx, invalidArgument(err))
	}

	account, err := c.Service.Update(ctx.UserContext(), ctx.Params("email"), *payload)
	if err != nil {
		return c.renderError(ctx, err)
	}

	return ctx.JSON(fiber.Map{
		"data":    account,
		"message": "Account updated.",
	})
}

// Delete handles DELETE /accounts/:id.
func (c *HTTPController) Delete(ctx *fiber.Ctx) error {
	id, err := strconv.ParseInt(ctx.Params("id"), 10, 64)
	if err != nil {
		return c.renderError(ctx, invalidArgumentWith("id must be an integer"))
	}

	if err := c.Service.Delete(ctx.UserContext(), id); err != nil {
		return c.renderError(ctx, err)
	}

	return ctx.JSON(fiber.Map{"message": "Account deleted."})
}

// VerifyEmail handles GET /verify-email?token=...
func (c *HTTPController) VerifyEmail(ctx *fiber.Ctx) error {
	if err := c.Service.VerifyEmail(ctx.UserContext(), ctx.Query("token")); err != nil {
		return c.renderError(ctx, err)
	}

	return ctx.JSON(fiber.Map{"message": "Email verified."})
}

// EmailRequest is the payload for operations addressed by email.
type EmailRequest struct {
	Email string `json:"email"`
}

// Validate implements the input shape.
func (r EmailRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
	)
}

// RequestPasswordReset handles POST /password-reset. The response is the
// same whether or not the email exists.
func (c *HTTPController) RequestPasswordReset(ctx *fiber.Ctx) error {
	payload := new(EmailRequest)
	if err := ctx.BodyParser(payload); err != nil {
		return c.renderError(ctx, invalidArgument(err))
	}

	if err := payload.Validate(); err != nil {
		return c.renderError(ctx, invalidArgument(err))
	}

	if err := c.Service.RequestPasswordReset(ctx.UserContext(), payload.Email); err != nil {
		return c.renderError(ctx, err)
	}

	return ctx.JSON(fiber.Map{"message": GenericRecoveryMessage})
}

// ApplyResetRequest is the POST /password-reset/apply payload.
type ApplyResetRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

// Validate implements the input shape.
func (r ApplyResetRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Token, validation.Required),
		validation.Field(&r.Password, validation.Required, validation.Length(8, 100)),
	)
}

// ApplyPasswordReset handles POST /password-reset/apply.
func (c *HTTPController) ApplyPasswordReset(ctx *fiber.Ctx) error {
	payload := new(ApplyResetRequest)
	if err := ctx.BodyParser(payload); err != nil {
		return c.renderError(ctx, invalidArgument(err))
	}

	if err := payload.Validate(); err != nil {
		return c.renderError(ctx, invalidArgument(err))
	}

	if err := c.Service.ApplyPasswordReset(ctx.UserContext(), payload.Token, payload.Password); err != nil {
		return c.renderError(ctx, err)
	}

	return ctx.JSON(fiber.Map{"message": "Password reset successfully."})
}

// ResendVerification handles POST /verify-email/resend.
func (c *HTTPController) ResendVerification(ctx *fiber.Ctx) error {
	payload := new(EmailRequest)
	if err := ctx.BodyParser(payload); err != nil {
		return c.renderError(ctx, invalidArgument(err))
	}

	if err := payload.Validate(); err != nil {
		return c.renderError(ctx, invalidArgument(err))
	}

	if err := c.Service.ResendVerification(ctx.UserContext(), payload.Email); err != nil {
		return c.renderError(ctx, err)
	}

	return ctx.JSON(fiber.Map{"message": "Verification email sent."})
}

func (c *HTTPController) renderError(ctx *fiber.Ctx, err error) error {
	kind := ErrorKind(err)

	message := "unexpected error"
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) && kind != TextCodeInternal {
		message = richErr.Message
	}

	if kind == TextCodeInternal {
		// keep store and hasher details (and any secret material) out of
		// the response body
		c.Logger.Error("request failed: %v", err)
	}

	return ctx.Status(statusForKind(kind)).JSON(fiber.Map{
		"error": fiber.Map{
			"kind":    kind,
			"message": message,
		},
	})
}

func statusForKind(kind string) int {
	switch kind {
	case TextCodeInvalidArgument, TextCodeInvalidToken, TextCodeTokenExpired:
		return fiber.StatusBadRequest
	case TextCodeDuplicateEmail:
		return fiber.StatusConflict
	case TextCodeNotFound:
		return fiber.StatusNotFound
	case TextCodeInvalidCredentials:
		return fiber.StatusUnauthorized
	case TextCodeEmailNotVerified:
		return fiber.StatusForbidden
	default:
		return fiber.StatusInternalServerError
	}
}
