package models

import "errors"

// Pipeline errors. Each is terminal for the operation that produced it;
// callers map them to transport errors, never retry or pad around them.
var (
	// ErrDataIntegrity marks series that violate ordering, uniqueness or
	// field validity, and artifacts whose checksum does not match.
	ErrDataIntegrity = errors.New("data integrity violation")

	// ErrInsufficientData marks a training range too short to produce a
	// single window for the requested window and horizon.
	ErrInsufficientData = errors.New("insufficient data for training split")

	// ErrInsufficientHistory marks an inference request with fewer records
	// than the model's window.
	ErrInsufficientHistory = errors.New("insufficient history for input window")

	// ErrNotFitted marks a scaler transform before Fit.
	ErrNotFitted = errors.New("scaler is not fitted")

	// ErrShapeMismatch marks model input whose window length or feature
	// count differs from the shape the model was trained on.
	ErrShapeMismatch = errors.New("input shape mismatch")

	// ErrUnsupportedHorizon marks a horizon no trained model covers.
	ErrUnsupportedHorizon = errors.New("unsupported forecast horizon")

	// ErrSchemaVersion marks an artifact written under a schema this build
	// does not understand.
	ErrSchemaVersion = errors.New("unsupported artifact schema version")
)
