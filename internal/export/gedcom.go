package export

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// gedcomDate renders a date in GEDCOM's "2 JAN 2006" form.
func gedcomDate(t time.Time) string {
	return strings.ToUpper(t.Format("2 Jan 2006"))
}

// exportGEDCOM builds a GEDCOM 5.5 lineage-linked file: one INDI record per
// member and one FAM record per distinct parent set.
func exportGEDCOM(tree Tree, members []Person, relationships []Relationship) *Result {
	var b strings.Builder

	b.WriteString("0 HEAD\n")
	b.WriteString("1 SOUR Ancestry\n")
	b.WriteString("1 GEDC\n")
	b.WriteString("2 VERS 5.5\n")
	b.WriteString("2 FORM LINEAGE-LINKED\n")
	b.WriteString("1 CHAR UTF-8\n")
	fmt.Fprintf(&b, "1 FILE %s\n", tree.Name)

	families := buildFamilies(relationships)
	famOfChild := make(map[int64]string)
	famsOfParent := make(map[int64][]string)
	for _, fam := range families {
		for _, child := range fam.children {
			famOfChild[child] = fam.id
		}
		for _, parent := range fam.parents {
			famsOfParent[parent] = append(famsOfParent[parent], fam.id)
		}
	}

	byID := make(map[int64]Person, len(members))
	for _, person := range members {
		byID[person.ID] = person
	}

	for _, person := range members {
		fmt.Fprintf(&b, "0 @I%d@ INDI\n", person.ID)

		given := person.FirstName
		if person.MiddleName != "" {
			given += " " + person.MiddleName
		}
		fmt.Fprintf(&b, "1 NAME %s /%s/\n", given, person.LastName)
		if person.MaidenName != "" {
			fmt.Fprintf(&b, "2 _MARNM %s\n", person.LastName)
		}

		switch person.Gender {
		case "Male":
			b.WriteString("1 SEX M\n")
		case "Female":
			b.WriteString("1 SEX F\n")
		}

		if person.BirthDate != nil || person.BirthPlace != "" {
			b.WriteString("1 BIRT\n")
			if person.BirthDate != nil {
				fmt.Fprintf(&b, "2 DATE %s\n", gedcomDate(*person.BirthDate))
			}
			if person.BirthPlace != "" {
				fmt.Fprintf(&b, "2 PLAC %s\n", person.BirthPlace)
			}
		}
		if person.DeathDate != nil || person.DeathPlace != "" {
			b.WriteString("1 DEAT\n")
			if person.DeathDate != nil {
				fmt.Fprintf(&b, "2 DATE %s\n", gedcomDate(*person.DeathDate))
			}
			if person.DeathPlace != "" {
				fmt.Fprintf(&b, "2 PLAC %s\n", person.DeathPlace)
			}
		}

		if famID, ok := famOfChild[person.ID]; ok {
			fmt.Fprintf(&b, "1 FAMC @%s@\n", famID)
		}
		for _, famID := range famsOfParent[person.ID] {
			fmt.Fprintf(&b, "1 FAMS @%s@\n", famID)
		}
	}

	for _, fam := range families {
		fmt.Fprintf(&b, "0 @%s@ FAM\n", fam.id)
		for _, parentID := range fam.parents {
			parent, ok := byID[parentID]
			switch {
			case ok && parent.Gender == "Female":
				fmt.Fprintf(&b, "1 WIFE @I%d@\n", parentID)
			default:
				fmt.Fprintf(&b, "1 HUSB @I%d@\n", parentID)
			}
		}
		for _, childID := range fam.children {
			fmt.Fprintf(&b, "1 CHIL @I%d@\n", childID)
		}
	}

	b.WriteString("0 TRLR\n")

	return &Result{
		Data:     []byte(b.String()),
		Filename: sanitizeFilename(tree.Name) + ".ged",
		MimeType: "text/x-gedcom",
	}
}

type family struct {
	id       string
	parents  []int64
	children []int64
}

// buildFamilies groups parent-child links: children sharing the same parent
// set land in one FAM record.
func buildFamilies(relationships []Relationship) []family {
	parentsOf := make(map[int64][]int64)
	for _, rel := range relationships {
		parentsOf[rel.ChildID] = append(parentsOf[rel.ChildID], rel.ParentID)
	}

	grouped := make(map[string]*family)
	var keys []string
	for childID, parents := range parentsOf {
		sort.Slice(parents, func(i, j int) bool { return parents[i] < parents[j] })
		parts := make([]string, len(parents))
		for i, id := range parents {
			parts[i] = fmt.Sprintf("%d", id)
		}
		key := strings.Join(parts, "+")

		fam, ok := grouped[key]
		if !ok {
			fam = &family{parents: parents}
			grouped[key] = fam
			keys = append(keys, key)
		}
		fam.children = append(fam.children, childID)
	}

	sort.Strings(keys)
	families := make([]family, 0, len(grouped))
	for i, key := range keys {
		fam := grouped[key]
		fam.id = fmt.Sprintf("F%d", i+1)
		sort.Slice(fam.children, func(a, b int) bool { return fam.children[a] < fam.children[b] })
		families = append(families, *fam)
	}
	return families
}
