package jwt

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"

	"github.com/rvs/workflow-nodes/internal/model"
	"github.com/rvs/workflow-nodes/internal/node"
)

// Type is the registered node type name.
const Type = "rvsJwt"

// Operation selects what the node does with its payload.
type Operation string

const (
	OperationGenerate Operation = "generateJwt"
	OperationVerify   Operation = "verifyJwt"
)

// Node signs and verifies HS256 JSON Web Tokens.
type Node struct {
	now func() time.Time
}

// New returns a JWT node using the wall clock.
func New() *Node {
	return &Node{now: time.Now}
}

// Execute reads its parameters from the first item and either signs the
// payload or verifies it as a token.
func (n *Node) Execute(_ context.Context, ec node.ExecuteContext) ([][]model.Item, error) {
	p := ec.Params(0)

	op := Operation(p.String("operation", string(OperationVerify)))
	target := p.String("targetObjectName", "result")
	secret := []byte(p.String("privateKey", ""))
	payload, _ := p.Value("payload")

	switch op {
	case OperationGenerate:
		token, err := n.sign(payload, secret)
		if err != nil {
			return nil, err
		}
		return single(target, token), nil

	case OperationVerify:
		return n.verify(ec, p.Collection("options"), payload, secret, target)

	default:
		return nil, &node.ConfigurationError{
			ItemIndex: node.NoItem, Message: "Unsupported operation", Value: string(op),
		}
	}
}

func single(target string, result any) [][]model.Item {
	return [][]model.Item{{model.NewItem(map[string]any{target: result}, 0)}}
}

func (n *Node) sign(payload any, secret []byte) (string, error) {
	claims, raw, err := n.claims(payload)
	if err != nil {
		return "", err
	}

	if claims != nil {
		token := gojwt.NewWithClaims(gojwt.SigningMethodHS256, claims)
		signed, err := token.SignedString(secret)
		if err != nil {
			return "", &node.OperationError{ItemIndex: 0, Message: "signing token", Err: err}
		}
		return signed, nil
	}

	return signRaw(raw, secret)
}

// claims turns the payload parameter into a claim set. Strings are signed
// byte for byte and come back as raw.
func (n *Node) claims(payload any) (gojwt.MapClaims, string, error) {
	var claims gojwt.MapClaims

	switch v := payload.(type) {
	case nil:
	case string:
		if strings.TrimSpace(v) != "" {
			return nil, v, nil
		}
	case map[string]any:
		claims = gojwt.MapClaims(cloneMap(v))
	case node.Params:
		claims = gojwt.MapClaims(cloneMap(v))
	case bool:
		if v {
			return nil, "true", nil
		}
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return nil, "", &node.ConfigurationError{
				ItemIndex: 0, Message: "Payload must be defined in type string or object", Err: err,
			}
		}
		if string(b) != "0" {
			return nil, string(b), nil
		}
	}

	if claims == nil {
		return nil, "", &node.ConfigurationError{
			ItemIndex: 0, Message: "Payload must be defined in type string or object",
		}
	}
	if _, ok := claims["iat"]; !ok {
		claims["iat"] = n.now().Unix()
	}
	return claims, "", nil
}

func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// signRaw signs a payload that is not a claim set, keeping its bytes as the
// token body.
func signRaw(payload string, secret []byte) (string, error) {
	header, err := json.Marshal(map[string]string{"alg": "HS256", "typ": "JWT"})
	if err != nil {
		return "", err
	}
	enc := base64.RawURLEncoding
	signingString := enc.EncodeToString(header) + "." + enc.EncodeToString([]byte(payload))

	sig, err := gojwt.SigningMethodHS256.Sign(signingString, secret)
	if err != nil {
		return "", &node.OperationError{ItemIndex: 0, Message: "signing token", Err: err}
	}
	return signingString + "." + enc.EncodeToString(sig), nil
}

func (n *Node) verify(
	ec node.ExecuteContext, options node.Params, payload any, secret []byte, target string,
) ([][]model.Item, error) {
	tokenString, _ := payload.(string)

	result, err := n.parse(tokenString, secret)
	if err != nil {
		if options.Bool("raiseException", false) {
			return nil, &node.OperationError{ItemIndex: 0, Message: "verifying token", Err: err}
		}
		ec.Logger().Debug("token verification failed", "node", Type, "err", err)
		return single(target, map[string]any{"error": true}), nil
	}

	if !options.Bool("extendInputObject", true) {
		return single(target, result), nil
	}

	inputs := ec.InputData()
	out := make([]model.Item, len(inputs))
	for i, in := range inputs {
		item := in.Clone()
		item.JSON[target] = result
		if item.PairedItem == nil {
			item.PairedItem = &model.PairedItem{Item: i}
		}
		out[i] = item
	}
	return [][]model.Item{out}, nil
}

// parse verifies tokenString and returns its decoded parts. Tokens whose
// body is not a JSON object are checked by signature only and report the
// body as a string.
func (n *Node) parse(tokenString string, secret []byte) (map[string]any, error) {
	if tokenString == "" {
		return nil, errors.New("jwt must be provided")
	}

	claims := gojwt.MapClaims{}
	token, err := gojwt.ParseWithClaims(tokenString, claims,
		func(*gojwt.Token) (any, error) { return secret, nil },
		gojwt.WithValidMethods([]string{gojwt.SigningMethodHS256.Alg()}),
		gojwt.WithTimeFunc(n.now),
	)
	if err != nil {
		if errors.Is(err, gojwt.ErrTokenMalformed) {
			if res, rawErr := parseRaw(tokenString, secret); rawErr == nil {
				return res, nil
			}
		}
		return nil, fmt.Errorf("parsing token: %w", err)
	}

	return map[string]any{
		"header":    token.Header,
		"payload":   map[string]any(claims),
		"signature": base64.RawURLEncoding.EncodeToString(token.Signature),
		"error":     false,
	}, nil
}

// parseRaw verifies a token whose body is an arbitrary string.
func parseRaw(tokenString string, secret []byte) (map[string]any, error) {
	parts := strings.Split(tokenString, ".")
	if len(parts) != 3 {
		return nil, gojwt.ErrTokenMalformed
	}
	enc := base64.RawURLEncoding

	headerJSON, err := enc.DecodeString(parts[0])
	if err != nil {
		return nil, fmt.Errorf("decoding header: %w", err)
	}
	var header map[string]any
	if err := json.Unmarshal(headerJSON, &header); err != nil {
		return nil, fmt.Errorf("decoding header: %w", err)
	}
	if header["alg"] != gojwt.SigningMethodHS256.Alg() {
		return nil, gojwt.ErrTokenSignatureInvalid
	}

	body, err := enc.DecodeString(parts[1])
	if err != nil {
		return nil, fmt.Errorf("decoding payload: %w", err)
	}
	var obj map[string]any
	if json.Unmarshal(body, &obj) == nil && obj != nil {
		// Claim sets go through the full validation path.
		return nil, gojwt.ErrTokenMalformed
	}

	sig, err := enc.DecodeString(parts[2])
	if err != nil {
		return nil, fmt.Errorf("decoding signature: %w", err)
	}
	if err := gojwt.SigningMethodHS256.Verify(parts[0]+"."+parts[1], sig, secret); err != nil {
		return nil, err
	}

	return map[string]any{
		"header":    header,
		"payload":   string(body),
		"signature": parts[2],
		"error":     false,
	}, nil
}
