/*
Package security provides AES-256-GCM encryption of system connection
info.

Connection credentials never reach storage in plaintext: the API layer
encrypts them before CreateSystem/UpdateSystem and the runner decrypts
them only at connector construction time. Keys are either supplied
directly (32 bytes) or derived from a password with SHA-256.

The ciphertext layout is the GCM nonce followed by the sealed payload,
matching what Decrypt expects.
*/
package security
