package errors

import "errors"

// FromError converts a standard error to an AppError.
// An AppError anywhere in the chain is returned as-is; anything else becomes
// an internal server error that keeps err as its cause.
func FromError(err error) *AppError {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	return NewInternalServerError(CodeInternal, "An unexpected error occurred").Wrap(err)
}

// Body renders err in the persistence endpoint's failure shape:
// {success:false, error, code, details?}
func Body(appErr *AppError, exposeDetails bool) map[string]any {
	body := map[string]any{
		"success": false,
		"error":   appErr.Message,
		"code":    appErr.Code,
	}
	if exposeDetails && appErr.Details != nil {
		body["details"] = appErr.Details
	}
	return body
}
