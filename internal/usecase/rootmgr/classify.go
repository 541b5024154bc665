package rootmgr

import (
	"strings"

	"rootshell/internal/domain"
)

// classifyInstall maps package-manager install output to a Result. The pm
// tool reports outcomes as text, not exit codes, so the classification is
// substring based.
func classifyInstall(out string) domain.Result {
	switch {
	case strings.TrimSpace(out) == "":
		return domain.FailedResult(out)
	case containsFold(out, "success"):
		return domain.OKResult(out)
	case strings.Contains(out, "FAILED_INSUFFICIENT_STORAGE"):
		return domain.Result{Code: domain.ResultNoSpace, Message: out}
	case strings.Contains(out, "FAILED_INCONSISTENT_CERTIFICATES"):
		return domain.Result{Code: domain.ResultBadCertificates, Message: out}
	case strings.Contains(out, "FAILED_CONTAINER_ERROR"):
		return domain.Result{Code: domain.ResultContainerError, Message: out}
	default:
		return domain.FailedResult(out)
	}
}

// classifyUninstall maps package-manager uninstall output to a Result.
func classifyUninstall(out string) domain.Result {
	if containsFold(out, "success") {
		return domain.OKResult(out)
	}
	return domain.FailedResult(out)
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), substr)
}
