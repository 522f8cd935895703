package graphql

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/MrEthical07/lireddit"
)

// Service is the part of lireddit.Engine the resolvers call.
type Service interface {
	Register(ctx context.Context, input lireddit.RegisterInput) (*lireddit.AuthResult, error)
	Login(ctx context.Context, input lireddit.LoginInput) (*lireddit.AuthResult, error)
	Logout(ctx context.Context) (bool, error)
	Me(ctx context.Context) (*lireddit.User, error)
	UserByID(ctx context.Context, id int64) (*lireddit.User, error)
	ForgotPassword(ctx context.Context, email string) (bool, error)
	ChangePassword(ctx context.Context, token, newPassword string) (*lireddit.AuthResult, error)

	Posts(ctx context.Context) ([]lireddit.Post, error)
	Post(ctx context.Context, id int64) (*lireddit.Post, error)
	CreatePost(ctx context.Context, input lireddit.PostInput) (*lireddit.Post, error)
	UpdatePost(ctx context.Context, id int64, title string) (*lireddit.Post, error)
	DeletePost(ctx context.Context, id int64) (bool, error)

	SessionCookie(value string, expires time.Time) *http.Cookie
	ClearSessionCookie() *http.Cookie
}

// Resolver is the root resolver for both Query and Mutation.
type Resolver struct {
	svc    Service
	public allowList
	errors *errorPresenter
}

// authorize fails fields outside the allow-list when ctx carries no session.
func (r *Resolver) authorize(ctx context.Context, field string) error {
	if r.public.allows(field) {
		return nil
	}
	if _, ok := lireddit.SessionFromContext(ctx); ok {
		return nil
	}
	return r.errors.present(ctx, lireddit.ErrUnauthorized)
}

/* ---- Query ---- */

func (r *Resolver) GetPosts(ctx context.Context) (*[]*postResolver, error) {
	if err := r.authorize(ctx, "getPosts"); err != nil {
		return nil, err
	}
	posts, err := r.svc.Posts(ctx)
	if err != nil {
		return nil, r.errors.present(ctx, err)
	}
	out := make([]*postResolver, len(posts))
	for i := range posts {
		out[i] = &postResolver{p: posts[i], root: r}
	}
	return &out, nil
}

func (r *Resolver) GetPost(ctx context.Context, args struct{ ID int32 }) (*postResolver, error) {
	if err := r.authorize(ctx, "getPost"); err != nil {
		return nil, err
	}
	p, err := r.svc.Post(ctx, int64(args.ID))
	if err != nil {
		return nil, r.errors.present(ctx, err)
	}
	if p == nil {
		return nil, nil
	}
	return &postResolver{p: *p, root: r}, nil
}

// GetUser resolves identically to Me.
func (r *Resolver) GetUser(ctx context.Context) (*userResolver, error) {
	if err := r.authorize(ctx, "getUser"); err != nil {
		return nil, err
	}
	return r.me(ctx)
}

func (r *Resolver) Me(ctx context.Context) (*userResolver, error) {
	if err := r.authorize(ctx, "me"); err != nil {
		return nil, err
	}
	return r.me(ctx)
}

func (r *Resolver) me(ctx context.Context) (*userResolver, error) {
	u, err := r.svc.Me(ctx)
	if err != nil {
		return nil, r.errors.present(ctx, err)
	}
	return newUserResolver(u), nil
}

/* ---- Mutation ---- */

type createUserInput struct {
	Username string
	Password string
	Email    string
}

type loginUserInput struct {
	UsernameOrEmail string
	Password        string
}

type postInput struct {
	Title string
	Text  string
}

func (r *Resolver) Register(ctx context.Context, args struct{ UserInput createUserInput }) (*userResolver, error) {
	if err := r.authorize(ctx, "register"); err != nil {
		return nil, err
	}
	res, err := r.svc.Register(ctx, lireddit.RegisterInput{
		Username: args.UserInput.Username,
		Password: args.UserInput.Password,
		Email:    args.UserInput.Email,
	})
	if err != nil {
		return nil, r.errors.present(ctx, err)
	}
	r.startSession(ctx, res)
	return newUserResolver(res.User), nil
}

func (r *Resolver) Login(ctx context.Context, args struct{ UserInput loginUserInput }) (*userResolver, error) {
	if err := r.authorize(ctx, "login"); err != nil {
		return nil, err
	}
	res, err := r.svc.Login(ctx, lireddit.LoginInput{
		UsernameOrEmail: strings.TrimSpace(args.UserInput.UsernameOrEmail),
		Password:        args.UserInput.Password,
	})
	if err != nil {
		return nil, r.errors.present(ctx, err)
	}
	r.startSession(ctx, res)
	return newUserResolver(res.User), nil
}

func (r *Resolver) Logout(ctx context.Context) (*bool, error) {
	if err := r.authorize(ctx, "logout"); err != nil {
		return nil, err
	}
	ok, err := r.svc.Logout(ctx)
	if err != nil {
		return nil, r.errors.present(ctx, err)
	}
	requestStateFrom(ctx).setCookie(r.svc.ClearSessionCookie())
	return &ok, nil
}

func (r *Resolver) ForgotPassword(ctx context.Context, args struct{ Email string }) (*bool, error) {
	if err := r.authorize(ctx, "forgotPassword"); err != nil {
		return nil, err
	}
	ok, err := r.svc.ForgotPassword(ctx, args.Email)
	if err != nil {
		return nil, r.errors.present(ctx, err)
	}
	return &ok, nil
}

func (r *Resolver) ChangePassword(ctx context.Context, args struct {
	Token       string
	NewPassword string
}) (*userResolver, error) {
	if err := r.authorize(ctx, "changePassword"); err != nil {
		return nil, err
	}
	res, err := r.svc.ChangePassword(ctx, args.Token, args.NewPassword)
	if err != nil {
		return nil, r.errors.present(ctx, err)
	}
	r.startSession(ctx, res)
	return newUserResolver(res.User), nil
}

func (r *Resolver) CreatePost(ctx context.Context, args struct{ PostInput *postInput }) (*postResolver, error) {
	if err := r.authorize(ctx, "createPost"); err != nil {
		return nil, err
	}
	var input lireddit.PostInput
	if args.PostInput != nil {
		input = lireddit.PostInput{Title: args.PostInput.Title, Text: args.PostInput.Text}
	}
	p, err := r.svc.CreatePost(ctx, input)
	if err != nil {
		return nil, r.errors.present(ctx, err)
	}
	return &postResolver{p: *p, root: r}, nil
}

func (r *Resolver) UpdatePost(ctx context.Context, args struct {
	ID    int32
	Title string
}) (*postResolver, error) {
	if err := r.authorize(ctx, "updatePost"); err != nil {
		return nil, err
	}
	p, err := r.svc.UpdatePost(ctx, int64(args.ID), args.Title)
	if err != nil {
		return nil, r.errors.present(ctx, err)
	}
	return &postResolver{p: *p, root: r}, nil
}

func (r *Resolver) DeletePost(ctx context.Context, args struct{ ID int32 }) (*bool, error) {
	if err := r.authorize(ctx, "deletePost"); err != nil {
		return nil, err
	}
	ok, err := r.svc.DeletePost(ctx, int64(args.ID))
	if err != nil {
		return nil, r.errors.present(ctx, err)
	}
	return &ok, nil
}

func (r *Resolver) startSession(ctx context.Context, res *lireddit.AuthResult) {
	if res == nil || res.SessionToken == "" {
		return
	}
	requestStateFrom(ctx).setCookie(r.svc.SessionCookie(res.SessionToken, res.SessionExpiresAt))
}

/* ---- Types ---- */

type userResolver struct {
	u lireddit.User
}

func newUserResolver(u *lireddit.User) *userResolver {
	if u == nil {
		return nil
	}
	return &userResolver{u: *u}
}

func (r *userResolver) ID() int32 { return int32(r.u.ID) }
func (r *userResolver) Username() string { return r.u.Username }
func (r *userResolver) Email() string { return r.u.Email }
func (r *userResolver) CreatedAt() *string { return timestamp(r.u.CreatedAt) }
func (r *userResolver) UpdatedAt() *string { return timestamp(r.u.UpdatedAt) }

type postResolver struct {
	p    lireddit.Post
	root *Resolver
}

func (r *postResolver) ID() int32 { return int32(r.p.ID) }
func (r *postResolver) Title() string { return r.p.Title }
func (r *postResolver) Text() string { return r.p.Text }
func (r *postResolver) Points() int32 { return int32(r.p.Points) }
func (r *postResolver) CreatedAt() *string { return timestamp(r.p.CreatedAt) }
func (r *postResolver) UpdatedAt() *string { return timestamp(r.p.UpdatedAt) }

// Author is nil for posts without an author or whose author was deleted.
// Lookups are memoized per request.
func (r *postResolver) Author(ctx context.Context) (*userResolver, error) {
	if _, ok := lireddit.SessionFromContext(ctx); !ok {
		return nil, r.root.errors.present(ctx, lireddit.ErrUnauthorized)
	}
	if r.p.AuthorID == 0 {
		return nil, nil
	}
	u, err := requestStateFrom(ctx).author(r.p.AuthorID, func() (*lireddit.User, error) {
		return r.root.svc.UserByID(ctx, r.p.AuthorID)
	})
	if err != nil {
		return nil, r.root.errors.present(ctx, err)
	}
	return newUserResolver(u), nil
}

func timestamp(t time.Time) *string {
	if t.IsZero() {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}
