package flows

import "context"

// Deps groups flow dependency sets. The root engine builds this once and
// delegates request methods to the matching flow.
type Deps struct {
	Register      RegisterDeps
	Login         LoginDeps
	Logout        LogoutDeps
	PasswordReset PasswordResetDeps
	Health        HealthDeps
}

// Service is the centralized flow runner built once by the root engine.
type Service struct {
	deps Deps
}

// New returns a flow service with immutable dependency wiring.
func New(deps Deps) Service {
	return Service{deps: deps}
}

// Initialized reports whether the service has been wired with flow deps.
func (s Service) Initialized() bool {
	return s.deps.Login.CreateSession != nil
}

func (s Service) Register(ctx context.Context, req RegisterRequest) (*RegisterResult, error) {
	return RunRegister(ctx, req, s.deps.Register)
}

func (s Service) Login(ctx context.Context, identifier, password string) (*LoginResult, error) {
	return RunLogin(ctx, identifier, password, s.deps.Login)
}

func (s Service) Logout(ctx context.Context, userID int64, sessionID string) error {
	return RunLogout(ctx, userID, sessionID, s.deps.Logout)
}

func (s Service) LogoutAll(ctx context.Context, userID int64) (int, error) {
	return RunLogoutAll(ctx, userID, s.deps.Logout)
}

func (s Service) ForgotPassword(ctx context.Context, email string) error {
	return RunForgotPassword(ctx, email, s.deps.PasswordReset)
}

func (s Service) ChangePassword(ctx context.Context, token, newPassword string) (*ChangePasswordResult, error) {
	return RunChangePassword(ctx, token, newPassword, s.deps.PasswordReset)
}

func (s Service) Health(ctx context.Context) (bool, []HealthStatus) {
	return RunHealth(ctx, s.deps.Health)
}
