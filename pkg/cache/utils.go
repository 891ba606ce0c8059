package cache

import "fmt"

// GenerateKey joins a prefix and an identifier into a cache key.
func GenerateKey(prefix string, id string) string {
	return fmt.Sprintf("%s:%s", prefix, id)
}

// GenerateKeyWithParams builds a cache key from a prefix and any number
// of parameters, separated by colons.
func GenerateKeyWithParams(prefix string, params ...interface{}) string {
	key := prefix
	for _, param := range params {
		key = fmt.Sprintf("%s:%v", key, param)
	}
	return key
}

// BuildPattern turns a prefix into a glob for DeleteByPattern.
func BuildPattern(prefix string) string {
	return fmt.Sprintf("%s*", prefix)
}
