package services

import (
	"crypto/rand"
	"math/big"

	"golang.org/x/crypto/bcrypt"
)

// MinPasswordLength applies to every password chosen by a user.
const MinPasswordLength = 8

func hashPassword(pw string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func checkPassword(hash, pw string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pw)) == nil
}

// no 0/O, 1/l/I
const tempAlphabet = "abcdefghjkmnpqrstuvwxyzABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// TemporaryPassword returns a random password shown once to the admin.
func TemporaryPassword() (string, error) {
	out := make([]byte, 12)
	max := big.NewInt(int64(len(tempAlphabet)))
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		out[i] = tempAlphabet[n.Int64()]
	}
	return string(out), nil
}
