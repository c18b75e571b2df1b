package utils

type contextKey string

const principalKey contextKey = "principal"
