package models

import "errors"

// ErrValidation marks errors caused by bad operator input
var ErrValidation = errors.New("validation failed")
