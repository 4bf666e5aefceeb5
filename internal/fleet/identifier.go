package fleet

import (
	"errors"
	"fmt"
	"strings"
)

const (
	emptyRepositoryNameMessageConstant     = "repository name must not be empty"
	invalidRepositoryNameTemplateConstant  = "repository name %q contains characters outside lowercase letters and hyphens"
	repositoryNameLowercaseLettersConstant = "abcdefghijklmnopqrstuvwxyz"
	repositoryNameHyphenCharacterConstant  = '-'
	repositoryNameMaximumLengthConstant    = 128
	repositoryNameTooLongTemplateConstant  = "repository name %q exceeds %d characters"
)

// ErrEmptyRepositoryName indicates a blank identifier was supplied.
var ErrEmptyRepositoryName = errors.New(emptyRepositoryNameMessageConstant)

// RepositoryName is a validated fleet repository identifier. Values are
// guaranteed to contain only lowercase ASCII letters and hyphens, making them
// safe to interpolate into filesystem paths and process arguments.
type RepositoryName string

// String returns the raw identifier text.
func (name RepositoryName) String() string {
	return string(name)
}

// ParseRepositoryName validates raw input against the identifier allow-list
// before it can reach a path or argv.
func ParseRepositoryName(rawName string) (RepositoryName, error) {
	trimmedName := strings.TrimSpace(rawName)
	if len(trimmedName) == 0 {
		return "", ErrEmptyRepositoryName
	}
	if len(trimmedName) > repositoryNameMaximumLengthConstant {
		return "", fmt.Errorf(repositoryNameTooLongTemplateConstant, trimmedName, repositoryNameMaximumLengthConstant)
	}
	for _, character := range trimmedName {
		if character == repositoryNameHyphenCharacterConstant {
			continue
		}
		if strings.ContainsRune(repositoryNameLowercaseLettersConstant, character) {
			continue
		}
		return "", fmt.Errorf(invalidRepositoryNameTemplateConstant, trimmedName)
	}
	return RepositoryName(trimmedName), nil
}
