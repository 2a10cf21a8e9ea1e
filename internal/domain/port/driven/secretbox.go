package driven

// SecretBox seals and opens secret strings. Implemented by *vault.Vault.
type SecretBox interface {
	Seal(plaintext string) (string, error)
	Open(envelope string) (string, error)
	Preview(envelope string) string
}
