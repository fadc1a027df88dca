package main

import (
	"fmt"

	"github.com/tilsley/prstage/pkg/ghmock"
)

const (
	seedOwner = "hpcugent"
	seedRepo  = "easybuild-easyconfigs"
	seedHead  = "5f1c0ffee5f1c0ffee5f1c0ffee5f1c0ffee5f1c"
)

type easyconfig struct {
	name      string
	version   string
	toolchain string
}

var easyconfigs = []easyconfig{
	{name: "GCC", version: "4.8.2", toolchain: "dummy"},
	{name: "GCC", version: "4.9.0", toolchain: "dummy"},
	{name: "zlib", version: "1.2.8", toolchain: "GCC-4.8.2"},
	{name: "bzip2", version: "1.0.6", toolchain: "GCC-4.8.2"},
}

// seedRepos populates the store with an easyconfigs tree on master, one clean
// PR that bumps zlib and adds a new file, and one PR with failing checks.
// Called before the server accepts requests.
func seedRepos(s *ghmock.Store) {
	s.SetFile(seedOwner, seedRepo, "master", "README.rst", "EasyBuild easyconfigs repository\n")
	for _, ec := range easyconfigs {
		s.SetFile(seedOwner, seedRepo, "master", ecPath(ec), ecContent(ec, ""))
	}

	bumped := easyconfig{name: "zlib", version: "1.2.8", toolchain: "GCC-4.8.2"}
	added := easyconfig{name: "zlib", version: "1.2.11", toolchain: "GCC-4.9.0"}
	s.SetFile(seedOwner, seedRepo, seedHead, ecPath(bumped), ecContent(bumped, "https://zlib.net/fossils/"))
	s.SetFile(seedOwner, seedRepo, seedHead, ecPath(added), ecContent(added, ""))

	s.AddPullRequest(seedOwner, seedRepo, ghmock.PullRequest{
		Number:         1,
		Title:          "zlib: fix source URL, add 1.2.11",
		MergeableState: "clean",
		Diff:           diffFor(bumped, added),
		Commits: []ghmock.Commit{
			{SHA: "0a1b2c3d4e5f60718293a4b5c6d7e8f901234567", Message: "fix zlib source URL"},
			{SHA: seedHead, Message: "add zlib 1.2.11"},
		},
	})
	s.AddPullRequest(seedOwner, seedRepo, ghmock.PullRequest{
		Number:         2,
		Title:          "GCC 5.1.0 (tests failing)",
		MergeableState: "unstable",
		Diff:           "",
		Commits:        []ghmock.Commit{{SHA: "badc0de", Message: "add GCC 5.1.0"}},
	})
}

func ecPath(ec easyconfig) string {
	return fmt.Sprintf("easybuild/easyconfigs/%c/%s/%s", toLower(ec.name[0]), ec.name, ecFile(ec))
}

func ecFile(ec easyconfig) string {
	if ec.toolchain == "dummy" {
		return fmt.Sprintf("%s-%s.eb", ec.name, ec.version)
	}
	return fmt.Sprintf("%s-%s-%s.eb", ec.name, ec.version, ec.toolchain)
}

func ecContent(ec easyconfig, sourceURL string) string {
	if sourceURL == "" {
		sourceURL = "http://example.org/" + ec.name
	}
	return fmt.Sprintf(`name = '%s'
version = '%s'

homepage = 'http://example.org/%s'
description = "%s %s"

toolchain = {'name': '%s', 'version': ''}

source_urls = ['%s']
sources = [SOURCELOWER_TAR_GZ]

moduleclass = 'lib'
`, ec.name, ec.version, ec.name, ec.name, ec.version, ec.toolchain, sourceURL)
}

// diffFor renders a minimal unified diff: a modification of changed and the
// addition of added.
func diffFor(changed, added easyconfig) string {
	cp, ap := ecPath(changed), ecPath(added)
	return fmt.Sprintf(`diff --git a/%[1]s b/%[1]s
index 1111111..2222222 100644
--- a/%[1]s
+++ b/%[1]s
@@ -9 +9 @@
-source_urls = ['http://example.org/%[3]s']
+source_urls = ['https://zlib.net/fossils/']
diff --git a/%[2]s b/%[2]s
new file mode 100644
index 0000000..3333333
--- /dev/null
+++ b/%[2]s
@@ -0,0 +1 @@
+name = '%[4]s'
`, cp, ap, changed.name, added.name)
}

func toLower(b byte) byte {
	if b >= 'A' && b <= 'Z' {
		return b + 'a' - 'A'
	}
	return b
}
