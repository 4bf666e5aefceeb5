package fleet_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/temirov/fleetdash/internal/fleet"
)

func TestParseRepositoryNameAcceptsValidIdentifiers(t *testing.T) {
	testCases := []struct {
		name     string
		rawName  string
		expected fleet.RepositoryName
	}{
		{name: "SimpleName", rawName: "alpha", expected: "alpha"},
		{name: "Hyphenated", rawName: "traffic-sim", expected: "traffic-sim"},
		{name: "SurroundingWhitespaceTrimmed", rawName: "  beta  ", expected: "beta"},
	}

	for _, testCase := range testCases {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			parsedName, parseError := fleet.ParseRepositoryName(testCase.rawName)
			require.NoError(t, parseError)
			require.Equal(t, testCase.expected, parsedName)
		})
	}
}

func TestParseRepositoryNameRejectsInvalidIdentifiers(t *testing.T) {
	testCases := []struct {
		name    string
		rawName string
	}{
		{name: "Empty", rawName: ""},
		{name: "WhitespaceOnly", rawName: "   "},
		{name: "UppercaseLetters", rawName: "Alpha"},
		{name: "Digits", rawName: "sim2"},
		{name: "ShellMetacharacters", rawName: "bad;name"},
		{name: "PathTraversal", rawName: "../etc"},
		{name: "EmbeddedSpace", rawName: "two words"},
		{name: "Underscore", rawName: "snake_case"},
		{name: "OverlongName", rawName: strings.Repeat("a", 200)},
	}

	for _, testCase := range testCases {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			parsedName, parseError := fleet.ParseRepositoryName(testCase.rawName)
			require.Error(t, parseError)
			require.Empty(t, parsedName)
		})
	}
}
