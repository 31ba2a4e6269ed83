package auth

var (
	HashPassword   = hashPassword
	VerifyPassword = verifyPassword
	SHA256Hex      = sha256Hex
	GenerateOTP    = generateOTP
)
