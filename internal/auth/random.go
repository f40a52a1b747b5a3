package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// tokenBytes 验证令牌与重置令牌的随机字节数。
const tokenBytes = 32

// generateToken 返回 n 个随机字节的 hex 编码。
func generateToken(n int) (string, error) {
	if n <= 0 {
		return "", fmt.Errorf("invalid token length")
	}
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
