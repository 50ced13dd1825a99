package state

// Key layout. Every record lives under a short ASCII prefix so backends can
// be inspected with standard tooling and prefixes never collide.
const (
	prefixAccount        = "acct/"
	prefixExperience     = "exp/"
	prefixPassBalance    = "pass/"
	prefixToken          = "tok/"
	prefixTokenBalance   = "tokbal/"
	prefixTokenAllowance = "tokallow/"
)

func accountKey(addr []byte) []byte {
	return append([]byte(prefixAccount), addr...)
}

func experienceKey(addr [20]byte) []byte {
	return append([]byte(prefixExperience), addr[:]...)
}

func passBalanceKey(exp [20]byte, holder [20]byte) []byte {
	key := make([]byte, 0, len(prefixPassBalance)+40)
	key = append(key, prefixPassBalance...)
	key = append(key, exp[:]...)
	key = append(key, holder[:]...)
	return key
}

func tokenKey(symbol string) []byte {
	return append([]byte(prefixToken), symbol...)
}

func tokenBalanceKey(symbol string, addr [20]byte) []byte {
	key := make([]byte, 0, len(prefixTokenBalance)+len(symbol)+21)
	key = append(key, prefixTokenBalance...)
	key = append(key, symbol...)
	key = append(key, '/')
	key = append(key, addr[:]...)
	return key
}

func tokenAllowanceKey(symbol string, owner, spender [20]byte) []byte {
	key := make([]byte, 0, len(prefixTokenAllowance)+len(symbol)+41)
	key = append(key, prefixTokenAllowance...)
	key = append(key, symbol...)
	key = append(key, '/')
	key = append(key, owner[:]...)
	key = append(key, spender[:]...)
	return key
}
