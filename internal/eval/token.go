package eval

type tokenType int

const (
	unknownToken tokenType = iota
	eofToken
	stringToken // quoted string text (bare words are rejected by the lexer)
	numberToken
	varToken // {name}
	trueToken
	falseToken
	nullToken
	andToken
	orToken
	notToken
	inToken
	eqToken
	neqToken
	ltToken
	lteToken
	gtToken
	gteToken
	lparenToken
	rparenToken
	lbracketToken
	rbracketToken
	commaToken
)

var tokenTypeToString = map[tokenType]string{
	unknownToken:  "unknown",
	eofToken:      "eof",
	stringToken:   "string",
	numberToken:   "number",
	varToken:      "var",
	trueToken:     "true",
	falseToken:    "false",
	nullToken:     "null",
	andToken:      "and",
	orToken:       "or",
	notToken:      "not",
	inToken:       "in",
	eqToken:       "==",
	neqToken:      "!=",
	ltToken:       "<",
	lteToken:      "<=",
	gtToken:       ">",
	gteToken:      ">=",
	lparenToken:   "(",
	rparenToken:   ")",
	lbracketToken: "[",
	rbracketToken: "]",
	commaToken:    ",",
}

func (t tokenType) String() string {
	if s, ok := tokenTypeToString[t]; ok {
		return s
	}
	return tokenTypeToString[unknownToken]
}

type token struct {
	Type  tokenType
	Value string
}

var keywordTokens = map[string]tokenType{
	"and":   andToken,
	"or":    orToken,
	"not":   notToken,
	"in":    inToken,
	"true":  trueToken,
	"false": falseToken,
	"null":  nullToken,
}
