package utils

import "strings"

func ToStringSlice(slice []any) []string {
	stringSlice := make([]string, 0)
	for _, v := range slice {
		if s, ok := v.(string); ok {
			stringSlice = append(stringSlice, s)
		}
	}
	return stringSlice
}

// SplitScopes splits a space-delimited scope string, dropping empty entries.
func SplitScopes(scopes string) []string {
	result := []string{}
	for _, s := range strings.Fields(scopes) {
		if s != "" {
			result = append(result, s)
		}
	}
	return result
}

// JoinScopes renders a scope set as the space-delimited wire form.
func JoinScopes(scopes []string) string {
	return strings.Join(scopes, " ")
}
