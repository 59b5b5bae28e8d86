package diag

import (
	"fmt"
	"go/token"
	"strings"
)

// Reasons used in sentinel identifiers.
const (
	ReasonMissingExtension = "missing_extension"
	ReasonMissingDefault   = "missing_default"
	ReasonUnknownModule    = "unknown_module"
	ReasonMethodConflict   = "method_conflict"
	ReasonAliasConflict    = "alias_conflict"
)

// MissingExtension is the configuration error for binding an extension-required
// module without any extension.
func MissingExtension(pos token.Position, trait, prefix string) Diagnostic {
	example := fmt.Sprintf("//%s:derive Administratable %s(ext=AdministratableExt)", prefix, trait)
	return Diagnostic{
		Pos:     pos,
		Kind:    Configuration,
		Subject: trait,
		Message: fmt.Sprintf("The contract trait `%s` requires an extension for authentication but none were provided. E.g. %s", trait, example),
		Example: example,
	}
}

// MissingDefault is the configuration error for wiring a module that has no
// default implementation without naming one.
func MissingDefault(pos token.Position, trait, prefix string) Diagnostic {
	example := fmt.Sprintf("//%s:derive %s(default=My%s)", prefix, trait, trait)
	return Diagnostic{
		Pos:     pos,
		Kind:    Configuration,
		Subject: trait,
		Message: fmt.Sprintf("The contract trait `%s` does not provide default implementation. One should be passed, e.g. %s", trait, example),
		Example: example,
	}
}

// UnknownModule is the configuration error for a derive entry that resolves
// to no module declaration.
func UnknownModule(pos token.Position, ref string, cause error) Diagnostic {
	return Diagnostic{
		Pos:     pos,
		Kind:    Configuration,
		Subject: ref,
		Message: fmt.Sprintf("cannot resolve contract trait `%s`: %v", ref, cause),
	}
}

// SentinelIdent is the undefined identifier embedded for a configuration error.
// It reads well in the compiler's "undefined: ..." message.
func SentinelIdent(target, trait, reason string) string {
	parts := []string{"contractgen", target, trait, reason}
	for i, p := range parts {
		parts[i] = strings.ReplaceAll(p, ".", "_")
	}
	return strings.Join(parts, "_")
}

// Sentinel renders the build-failing declaration for d. The message goes in a
// comment right above the failing line so it sits next to the compiler error.
func Sentinel(ident string, d Diagnostic) string {
	var sb strings.Builder
	sb.WriteString("// contractgen: ")
	sb.WriteString(d.Message)
	sb.WriteString("\nvar _ = ")
	sb.WriteString(ident)
	sb.WriteString("\n")
	return sb.String()
}
