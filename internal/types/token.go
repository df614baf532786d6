package types

import (
	"crypto/rand"
	"encoding/json"
)

// TokenLength is the fixed length of game tokens
const TokenLength = 5

// tokenCharset is the set of characters game tokens are drawn from
const tokenCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// GameToken is a fixed length human readable code identifying a live
// game (e.g A3DLM). Stored as a byte array rather than a string so it
// is comparable and usable as a map key without allocation.
type GameToken [TokenLength]byte

// ParseToken validates and converts a textual code into a GameToken.
// Tokens are case-sensitive; every character must be in the charset.
func ParseToken(value string) (GameToken, error) {
	var token GameToken
	if len(value) != TokenLength {
		return token, ErrInvalidToken
	}
	for i := 0; i < TokenLength; i++ {
		c := value[i]
		if (c < 'A' || c > 'Z') && (c < '0' || c > '9') {
			return token, ErrInvalidToken
		}
		token[i] = c
	}
	return token, nil
}

// UniqueToken creates a random token from a CSPRNG, retrying until the
// provided predicate reports the token as not already taken.
func UniqueToken(taken func(GameToken) bool) GameToken {
	var token GameToken
	buf := make([]byte, 1)
	for {
		for at := 0; at < TokenLength; {
			if _, err := rand.Read(buf); err != nil {
				// crypto/rand never fails on supported platforms
				panic(err)
			}
			// Rejection sample 6 bits down onto the 36 character charset
			value := buf[0] & 0x3F
			if int(value) < len(tokenCharset) {
				token[at] = tokenCharset[value]
				at++
			}
		}
		if !taken(token) {
			return token
		}
	}
}

func (t GameToken) String() string {
	return string(t[:])
}

func (t GameToken) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *GameToken) UnmarshalJSON(data []byte) error {
	var value string
	if err := json.Unmarshal(data, &value); err != nil {
		return ErrInvalidToken
	}
	token, err := ParseToken(value)
	if err != nil {
		return err
	}
	*t = token
	return nil
}
