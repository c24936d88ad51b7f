package piditer

import (
	"bufio"
	"os"
	"strings"
)

// progFopsSymbol is the file_operations table the kernel installs on BPF
// program fds. Kernels that export it let the iterator program reject
// non-program handles in place; without it every handle is reported and the
// consumer filters by id.
const progFopsSymbol = "bpf_prog_fops"

// DetectPolicy decides the filter policy for the kernel-side iterator by
// probing, once, whether the program file_operations symbol is resolvable on
// this host. Any failure to read the symbol table degrades to permissive
// rather than refusing to run.
func DetectPolicy(kallsymsPath string) Policy {
	f, err := os.Open(kallsymsPath)
	if err != nil {
		return PolicyPermissive
	}
	defer f.Close()

	// Lines look like "ffffffffa1234567 r bpf_prog_fops". The address may
	// be zeroed under kptr_restrict; presence of the name is what matters.
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) >= 3 && fields[2] == progFopsSymbol {
			return PolicyStrict
		}
	}
	return PolicyPermissive
}
