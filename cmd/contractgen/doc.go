// Command contractgen generates statically dispatched implementations of
// contract traits and wires them into the structs that derive them.
//
// A contract trait is an interface in a declaration file, a Go file guarded by
// //go:build contractgen so the compiler never sees it:
//
//	//contract:trait default=Admin is_extension
//	type Administratable interface {
//		Admin(env *host.Env) host.Address
//		//contract:internal
//		RequireAdmin(env *host.Env)
//	}
//
//	func (self Administratable) RequireAdmin(env *host.Env) {
//		self.Admin(env).RequireAuth(env)
//	}
//
// For every trait contractgen emits the interface itself, a dispatch type
// AdministratableDispatch[I] whose methods forward to the implementation I
// (or run the body written on the interface), and, when asked for, the
// UpgradableNever[N] guard and the AdministratableExt[T, N] extension template.
//
// A struct opts into traits with a derive directive:
//
//	//contract:derive contractlib.Administratable contractlib.Upgradable(ext=contractlib.AdministratableUpgrade)
//	type Contract struct{}
//
// contractgen then writes, per trait, a ContractAdministratableImpl alias
// bound to the resolved implementation chain, forwarding methods on Contract,
// and entry points for the public methods on ContractABI. Extensions nest in
// declaration order: ext=E1, ext=E2 over default D yields E2[Contract, E1[Contract, D]].
//
// Usage:
//
//	contractgen [flags] [patterns...]
//
// Patterns are files, directories, go-style "./..." or doublestar globs; the
// default is "./...". Generated files are written beside each declaration
// file as <name>_contract.gen.go.
//
// Flags:
//
//	-c, --config                path to contractgen.yaml
//	    --check                 fail when a generated file is out of date, write nothing
//	-j, --jobs                  parallel workers
//	    --log-level             debug, info, warn or error
//	    --log-format            text or json
//	    --no-embed-diagnostics  report configuration errors without sentinels
//
// Configuration errors, such as an extension_required trait derived without
// an extension, are logged and also written into the generated file as an
// undefined identifier so the package fails to build until they are fixed.
//
// Typical use is a go:generate line in the package holding the declarations:
//
//	//go:generate go run github.com/sghaida/contractgen/cmd/contractgen .
package main
