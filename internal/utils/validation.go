package utils

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"taskdash/backend"
)

var validate *validator.Validate

type nowKey struct{}

func init() {
	validate = validator.New()
	_ = validate.RegisterValidationCtx("notpast", validateNotPast)
}

// validateNotPast accepts dates on or after the start of "today" in local time.
func validateNotPast(ctx context.Context, fl validator.FieldLevel) bool {
	due, ok := fl.Field().Interface().(time.Time)
	if !ok {
		return false
	}
	now, ok := ctx.Value(nowKey{}).(time.Time)
	if !ok {
		now = time.Now()
	}
	local := now.In(time.Local)
	startOfToday := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.Local)
	return !due.Before(startOfToday)
}

// ValidateTaskInput normalizes in and checks it against the API's rules.
// Failures are backend.KindValidationFailed errors.
func ValidateTaskInput(in backend.TaskInput, now time.Time) (backend.TaskInput, error) {
	in = in.Normalize()
	ctx := context.WithValue(context.Background(), nowKey{}, now)
	if err := validate.StructCtx(ctx, in); err != nil {
		return in, validationError(err)
	}
	return in, nil
}

// ValidateSignup checks a signup request before it is sent.
func ValidateSignup(req backend.SignupRequest) error {
	if err := validate.Struct(req); err != nil {
		return validationError(err)
	}
	return nil
}

// validationError turns validator output into a single readable ValidationFailed error.
func validationError(err error) error {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return backend.NewValidationError("%v", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fieldMessage(fe))
	}
	return backend.NewValidationError("%s", strings.Join(msgs, "; "))
}

func fieldMessage(fe validator.FieldError) string {
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of %s", field, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "notpast":
		return "due date cannot be in the past"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "email":
		return "email is not a valid address"
	case "eqfield":
		return "passwords do not match"
	}
	return fmt.Sprintf("%s failed %s", field, fe.Tag())
}

// relativePattern matches relative date formats like +7d, -3d, +2w, +1m
var relativePattern = regexp.MustCompile(`^([+-])(\d+)([dwm])$`)

// parseRelativeDate parses "today", "tomorrow", "yesterday", "+7d", "-3d", "+2w", "+1m".
// Returns nil, nil if the string is not a relative date.
func parseRelativeDate(dateStr string, now time.Time) (*time.Time, error) {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.Local)

	lower := strings.ToLower(dateStr)

	switch lower {
	case "today":
		return &today, nil
	case "tomorrow":
		t := today.AddDate(0, 0, 1)
		return &t, nil
	case "yesterday":
		t := today.AddDate(0, 0, -1)
		return &t, nil
	}

	matches := relativePattern.FindStringSubmatch(lower)
	if matches == nil {
		return nil, nil
	}

	num, err := strconv.Atoi(matches[2])
	if err != nil {
		return nil, ErrInvalidDate(dateStr)
	}
	if matches[1] == "-" {
		num = -num
	}

	var result time.Time
	switch matches[3] {
	case "d":
		result = today.AddDate(0, 0, num)
	case "w":
		result = today.AddDate(0, 0, num*7)
	case "m":
		result = today.AddDate(0, num, 0)
	}

	return &result, nil
}

// ParseDateFlag parses a date string supporting both relative and absolute formats.
// Supported relative formats: today, tomorrow, yesterday, +Nd, -Nd, +Nw, +Nm
// Supported absolute format: YYYY-MM-DD
// Returns nil, nil for an empty string.
func ParseDateFlag(dateStr string) (*time.Time, error) {
	return ParseDateFlagAt(dateStr, time.Now())
}

// ParseDateFlagAt is ParseDateFlag with an explicit "now".
func ParseDateFlagAt(dateStr string, now time.Time) (*time.Time, error) {
	dateStr = strings.TrimSpace(dateStr)
	if dateStr == "" {
		return nil, nil
	}

	t, err := parseRelativeDate(dateStr, now.In(time.Local))
	if err != nil {
		return nil, err
	}
	if t != nil {
		return t, nil
	}

	parsed, err := time.ParseInLocation("2006-01-02", dateStr, time.Local)
	if err != nil {
		return nil, ErrInvalidDate(dateStr)
	}
	return &parsed, nil
}

// ParseDueFlag is ParseDateFlag for due dates: a bare date means the end of that day.
func ParseDueFlag(dateStr string, now time.Time) (*time.Time, error) {
	t, err := ParseDateFlagAt(dateStr, now)
	if err != nil || t == nil {
		return t, err
	}
	end := time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 0, 0, t.Location())
	return &end, nil
}
