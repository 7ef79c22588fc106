// Package mock_checker holds gomock mocks for the checker package.
package mock_checker

//go:generate -command mockgen go run go.uber.org/mock/mockgen
//go:generate mockgen -destination=./mocks.go -package=mock_checker github.com/purelind/pycompat-check/internal/checker Checker
