package cli

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/EiDHindY/vaulture/internal/common"
	"github.com/EiDHindY/vaulture/internal/models"
	"github.com/EiDHindY/vaulture/internal/passgen"
)

// readCredential prompts for every field of a credential. Empty answers
// keep the values of base; an empty password with no base password is
// generated.
func (a *App) readCredential(base models.Credential) (models.Credential, error) {
	c := base
	fields := []struct {
		prompt string
		dst    *string
	}{
		{"Label (site or name)", &c.Label},
		{"Tag (optional)", &c.Tag},
		{"Username", &c.Username},
		{"URL", &c.URL},
	}
	for _, f := range fields {
		prompt := f.prompt
		if *f.dst != "" {
			prompt += fmt.Sprintf(" [%s]", *f.dst)
		}
		v, err := getSimpleText(a.reader, prompt, a.out)
		if err != nil {
			return c, err
		}
		if v != "" {
			*f.dst = v
		}
	}

	pw, err := getPassword("Entry password (empty to keep or generate)", a.out)
	if err != nil {
		return c, err
	}
	defer common.WipeByteArray(pw)
	switch {
	case len(pw) > 0:
		c.Password = string(pw)
	case c.Password == "":
		if c.Password, err = passgen.Generate(passgen.DefaultPolicy); err != nil {
			return c, err
		}
		a.println("Generated a password.")
	}

	notes, err := GetMultiline(a.reader, "Notes", a.out)
	if err != nil {
		return c, err
	}
	if notes != "" {
		c.Notes = notes
	}
	return c, nil
}

func (a *App) Add(ctx context.Context) error {
	userID, err := a.user()
	if err != nil {
		return err
	}
	c, err := a.readCredential(models.Credential{})
	if err != nil {
		return err
	}
	id, err := a.vault.Put(ctx, userID, c)
	if err != nil {
		return err
	}
	a.println("Saved entry", id)
	return nil
}

func (a *App) printEntries(entries []models.VaultEntry) {
	if len(entries) == 0 {
		a.println("No entries.")
		return
	}
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTAG\tLABEL\tUPDATED")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", e.ID, e.Tag, e.Label, e.UpdatedAt.Local().Format(time.DateTime))
	}
	tw.Flush()
}

// List prints the entry overviews, optionally only those tagged tag.
// Unreadable entries are reported after the readable ones.
func (a *App) List(ctx context.Context, tag string) error {
	userID, err := a.user()
	if err != nil {
		return err
	}
	var filter *string
	if tag != "" {
		filter = &tag
	}
	entries, err := a.vault.List(ctx, userID, filter)
	a.printEntries(entries)
	return err
}

func (a *App) Search(ctx context.Context, query, tag string) error {
	if query == "" {
		return fmt.Errorf("%w: search <query> [tag]", errUsage)
	}
	userID, err := a.user()
	if err != nil {
		return err
	}
	var filter *string
	if tag != "" {
		filter = &tag
	}
	entries, err := a.vault.Search(ctx, userID, query, filter)
	a.printEntries(entries)
	return err
}

func (a *App) Show(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("%w: show <id>", errUsage)
	}
	userID, err := a.user()
	if err != nil {
		return err
	}
	e, err := a.vault.Get(ctx, userID, id)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	for _, row := range [][2]string{
		{"Label", e.Label},
		{"Tag", e.Tag},
		{"Username", e.Username},
		{"Password", e.Password},
		{"URL", e.URL},
		{"Updated", e.UpdatedAt.Local().Format(time.DateTime)},
	} {
		fmt.Fprintf(tw, "%s:\t%s\n", row[0], row[1])
	}
	tw.Flush()
	if e.Notes != "" {
		a.println("Notes:")
		a.println(e.Notes)
	}
	return nil
}

func (a *App) Update(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("%w: update <id>", errUsage)
	}
	userID, err := a.user()
	if err != nil {
		return err
	}
	e, err := a.vault.Get(ctx, userID, id)
	if err != nil {
		return err
	}
	c, err := a.readCredential(e.Credential)
	if err != nil {
		return err
	}
	if err := a.vault.Update(ctx, userID, id, c); err != nil {
		return err
	}
	a.println("Updated entry", id)
	return nil
}

func (a *App) Delete(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("%w: delete <id>", errUsage)
	}
	userID, err := a.user()
	if err != nil {
		return err
	}
	answer, err := getSimpleText(a.reader, fmt.Sprintf("Delete entry %s? (yes/no)", id), a.out)
	if err != nil {
		return err
	}
	if answer != "yes" {
		a.println("Cancelled.")
		return nil
	}
	if err := a.vault.Delete(ctx, userID, id); err != nil {
		return err
	}
	a.println("Deleted entry", id)
	return nil
}

// Generate prints a random password of the given length.
func (a *App) Generate(length string) error {
	n, err := intArg(length, passgen.DefaultPolicy.Length)
	if err != nil {
		return err
	}
	p := passgen.DefaultPolicy
	p.Length = n
	pw, err := passgen.Generate(p)
	if err != nil {
		return err
	}
	a.println(pw)
	return nil
}
