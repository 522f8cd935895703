package lireddit

import (
	"context"
	"errors"
	"strconv"
	"strings"
)

// Posts returns every post, newest first.
func (e *Engine) Posts(ctx context.Context) ([]Post, error) {
	if e.posts == nil {
		return nil, ErrEngineNotReady
	}
	posts, err := e.posts.ListPosts(ctx)
	if err != nil {
		return nil, storeError(err)
	}
	return posts, nil
}

// Post returns nil when id does not exist.
func (e *Engine) Post(ctx context.Context, id int64) (*Post, error) {
	if e.posts == nil {
		return nil, ErrEngineNotReady
	}
	p, err := e.posts.GetPost(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, storeError(err)
	}
	return &p, nil
}

// CreatePost stores a post authored by the session user.
func (e *Engine) CreatePost(ctx context.Context, input PostInput) (*Post, error) {
	info, ok := SessionFromContext(ctx)
	if !ok {
		return nil, ErrUnauthorized
	}
	if err := e.validator.check(&input); err != nil {
		e.metricInc(MetricValidationFailure)
		return nil, err
	}
	if e.posts == nil {
		return nil, ErrEngineNotReady
	}

	p, err := e.posts.CreatePost(ctx, strings.TrimSpace(input.Title), input.Text, info.UserID)
	if err != nil {
		err = storeError(err)
		e.emitAudit(ctx, auditEventPostCreate, false, info.UserID, info.SessionID, err, nil)
		return nil, err
	}
	e.metricInc(MetricPostCreated)
	e.emitAudit(ctx, auditEventPostCreate, true, info.UserID, info.SessionID, nil, postMeta(p.ID))
	return &p, nil
}

// UpdatePost changes the title of a post. Posts with an author may only be
// changed by that author.
func (e *Engine) UpdatePost(ctx context.Context, id int64, title string) (*Post, error) {
	info, ok := SessionFromContext(ctx)
	if !ok {
		return nil, ErrUnauthorized
	}
	title = strings.TrimSpace(title)
	if err := e.validator.check(nil, fieldRule{field: "title", value: title, tag: "required,min=3,max=255"}); err != nil {
		e.metricInc(MetricValidationFailure)
		return nil, err
	}
	if err := e.authorizePostChange(ctx, info, id, auditEventPostUpdate); err != nil {
		return nil, err
	}

	p, err := e.posts.UpdatePostTitle(ctx, id, title)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrPostNotFound
		}
		return nil, storeError(err)
	}
	e.metricInc(MetricPostUpdated)
	e.emitAudit(ctx, auditEventPostUpdate, true, info.UserID, info.SessionID, nil, postMeta(id))
	return &p, nil
}

// DeletePost removes a post under the same ownership rule as UpdatePost.
func (e *Engine) DeletePost(ctx context.Context, id int64) (bool, error) {
	info, ok := SessionFromContext(ctx)
	if !ok {
		return false, ErrUnauthorized
	}
	if err := e.authorizePostChange(ctx, info, id, auditEventPostDelete); err != nil {
		return false, err
	}

	if err := e.posts.DeletePost(ctx, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, ErrPostNotFound
		}
		return false, storeError(err)
	}
	e.metricInc(MetricPostDeleted)
	e.emitAudit(ctx, auditEventPostDelete, true, info.UserID, info.SessionID, nil, postMeta(id))
	return true, nil
}

func (e *Engine) authorizePostChange(ctx context.Context, info SessionInfo, id int64, event string) error {
	if e.posts == nil {
		return ErrEngineNotReady
	}
	p, err := e.posts.GetPost(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			e.emitAudit(ctx, event, false, info.UserID, info.SessionID, ErrPostNotFound, postMeta(id))
			return ErrPostNotFound
		}
		return storeError(err)
	}
	if p.AuthorID != 0 && p.AuthorID != info.UserID {
		e.metricInc(MetricPostForbidden)
		e.emitAudit(ctx, event, false, info.UserID, info.SessionID, ErrForbidden, postMeta(id))
		return ErrForbidden
	}
	return nil
}

func postMeta(id int64) func() map[string]string {
	return func() map[string]string {
		return map[string]string{"post_id": strconv.FormatInt(id, 10)}
	}
}

func storeError(err error) error {
	if isContextErr(err) {
		return err
	}
	return errors.Join(ErrStoreUnavailable, err)
}
