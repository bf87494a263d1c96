package producer

import (
	"fmt"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/neowutran/qconvert/internal/officelock"
)

const (
	officeServerHost = "localhost"
	officeServerPort = "2202"
	officeConnectURI = "socket,host=" + officeServerHost + ",port=" + officeServerPort + ";urp"
)

// convertOffice handles every document kind LibreOffice itself recognizes
// (word processing, spreadsheet, presentation, drawing) by producing a PDF
// and handing it to the PDF branch, matching
// original_source/src/server.rs::convert_office.
func (p *Producer) convertOffice(sourcePath, workDir, defaultPassword string) ([]string, error) {
	pdfPath, err := directOfficeConvert(sourcePath, workDir)
	if err != nil {
		pdfPath, err = p.decryptedOfficeConvert(sourcePath, workDir, defaultPassword)
		if err != nil {
			return nil, fmt.Errorf("could not convert office document: %w", err)
		}
	}
	return p.convertPDF(pdfPath, workDir, defaultPassword)
}

// directOfficeConvert tries the fast path: a one-shot headless conversion
// with no password involved.
func directOfficeConvert(sourcePath, workDir string) (string, error) {
	cmd := exec.Command("libreoffice", "--headless", "--convert-to", "pdf", "--outdir", workDir, sourcePath)
	if out, err := cmd.CombinedOutput(); err != nil {
		return "", fmt.Errorf("direct libreoffice conversion failed: %w (%s)", err, out)
	}
	pdfPath := filepath.Join(workDir, trimExt(filepath.Base(sourcePath))+".pdf")
	if _, err := os.Stat(pdfPath); err != nil {
		return "", fmt.Errorf("direct libreoffice conversion produced no output: %w", err)
	}
	return pdfPath, nil
}

// decryptedOfficeConvert is the slow path for a password-protected
// document: it starts a long-lived LibreOffice server on the fixed UNO
// port, removes the password through a small Python/UNO script, kills the
// server before touching the result (the reference implementation hits a
// file-locked rename otherwise), and re-runs the direct conversion.
func (p *Producer) decryptedOfficeConvert(sourcePath, workDir, defaultPassword string) (string, error) {
	// Acquire keys off the session-wide scratch dir, not workDir (the
	// per-file scratch dir): the UNO port this guards is a single
	// process-wide resource for the whole worker session, so the lock
	// file must be shared across files, not unique to each one.
	lock, ok, err := officelock.Acquire(p.workDir)
	if err != nil {
		return "", fmt.Errorf("could not acquire office server lock: %w", err)
	}
	if !ok {
		return "", fmt.Errorf("office server port already in use by another session")
	}
	defer lock.Release()

	server := exec.Command("libreoffice", "--accept="+officeConnectURI, "--headless", "--invisible", "--nocrashreport", "--nodefault", "--norestore")
	if err := server.Start(); err != nil {
		return "", fmt.Errorf("could not start libreoffice server: %w", err)
	}
	defer func() {
		_ = server.Process.Kill()
		_ = server.Wait()
	}()

	if err := waitForOfficeServer(10 * time.Second); err != nil {
		return "", fmt.Errorf("libreoffice server never came up: %w", err)
	}

	decryptedPath := filepath.Join(workDir, "decrypted"+filepath.Ext(sourcePath))
	password := defaultPassword
	for {
		err := runUnoDecryptScript(sourcePath, decryptedPath, password)
		if err == nil {
			break
		}
		if p.Prompt == nil {
			return "", fmt.Errorf("office document needs a password and no prompter is configured: %w", err)
		}
		next, promptErr := p.Prompt()
		if promptErr != nil {
			return "", fmt.Errorf("could not obtain password: %w", promptErr)
		}
		password = next
	}

	_ = server.Process.Kill()
	_ = server.Wait()

	return directOfficeConvert(decryptedPath, workDir)
}

func waitForOfficeServer(timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		conn, err := net.DialTimeout("tcp", net.JoinHostPort(officeServerHost, officeServerPort), 200*time.Millisecond)
		if err == nil {
			conn.Close()
			return nil
		}
		time.Sleep(time.Second)
	}
	return fmt.Errorf("timed out waiting for port %s to accept connections", officeServerPort)
}

// runUnoDecryptScript drives the running LibreOffice server over its UNO
// API to load sourcePath with password and re-save it unencrypted at
// destPath, matching the python3 -c uno script in
// original_source/src/server.rs::remove_password.
func runUnoDecryptScript(sourcePath, destPath, password string) error {
	script := fmt.Sprintf(unoDecryptScriptTemplate, officeConnectURI, sourcePath, destPath, password)
	cmd := exec.Command("python3", "-c", script)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("uno decrypt script failed: %w (%s)", err, out)
	}
	return nil
}

func trimExt(name string) string {
	ext := filepath.Ext(name)
	return name[:len(name)-len(ext)]
}

const unoDecryptScriptTemplate = `
import uno
from com.sun.star.beans import PropertyValue

def prop(name, value):
    p = PropertyValue()
    p.Name = name
    p.Value = value
    return p

localContext = uno.getComponentContext()
resolver = localContext.ServiceManager.createInstanceWithContext(
    "com.sun.star.bridge.UnoUrlResolver", localContext)
ctx = resolver.resolve(
    "uno:%s;StarOffice.ComponentContext")
smgr = ctx.ServiceManager
desktop = smgr.createInstanceWithContext("com.sun.star.frame.Desktop", ctx)

in_url = uno.systemPathToFileUrl("%s")
out_url = uno.systemPathToFileUrl("%s")

doc = desktop.loadComponentFromURL(
    in_url, "_blank", 0, (prop("Hidden", True), prop("Password", "%s")))
doc.storeToURL(out_url, (prop("Overwrite", True),))
doc.close(False)
`
